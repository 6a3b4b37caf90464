package packet

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/encoding/charmap"
)

// Reader decodes one exchange payload. Byte 0 is the opcode. Reads past
// the end return zero values and mark the reader short, so a handler reads
// every field first and checks Short once.
type Reader struct {
	data  []byte
	off   int
	short bool
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data, off: 1}
}

func (r *Reader) Opcode() byte {
	if len(r.data) == 0 {
		return 0
	}
	return r.data[0]
}

func (r *Reader) take(n int) []byte {
	if r.off+n > len(r.data) {
		r.off = max(r.off, len(r.data))
		r.short = true
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadC reads one byte.
func (r *Reader) ReadC() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

// ReadD reads a little-endian int32, the width of every handshake variable.
func (r *Reader) ReadD() int32 {
	if b := r.take(4); b != nil {
		return int32(binary.LittleEndian.Uint32(b))
	}
	return 0
}

// ReadVar reads a [C var][D value] pair.
func (r *Reader) ReadVar() (byte, int32) {
	id := r.ReadC()
	return id, r.ReadD()
}

// ReadS reads a NUL-terminated ISO-8859-1 string and returns it as UTF-8.
func (r *Reader) ReadS() string {
	if r.off >= len(r.data) {
		r.short = true
		return ""
	}
	rest := r.data[r.off:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		r.off = len(r.data)
		r.short = true
		return decodeLatin1(rest)
	}
	r.off += end + 1
	return decodeLatin1(rest[:end])
}

func decodeLatin1(raw []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(s)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - min(r.off, len(r.data))
}

// Short reports whether any read ran past the end of the payload.
func (r *Reader) Short() bool {
	return r.short
}
