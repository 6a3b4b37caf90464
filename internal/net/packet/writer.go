package packet

import (
	"encoding/binary"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Writer builds one exchange payload, opcode first.
type Writer struct {
	buf []byte
}

func NewWriterWithOpcode(opcode byte) *Writer {
	return &Writer{buf: append(make([]byte, 0, 16), opcode)}
}

// WriteC writes one byte.
func (w *Writer) WriteC(v byte) {
	w.buf = append(w.buf, v)
}

// WriteD writes a little-endian int32.
func (w *Writer) WriteD(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

// WriteVar writes a [C var][D value] pair.
func (w *Writer) WriteVar(id byte, v int32) {
	w.WriteC(id)
	w.WriteD(v)
}

// WriteS writes a NUL-terminated ISO-8859-1 string. Runes outside Latin-1
// become '?'.
func (w *Writer) WriteS(s string) {
	encoded, err := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		encoded = []byte(s)
	}
	w.buf = append(append(w.buf, encoded...), 0)
}

// Bytes returns the payload.
func (w *Writer) Bytes() []byte {
	return w.buf
}
