package packet

// Client → server opcodes.
const (
	C_OPCODE_AUTH     byte = 0x01 // [S password]
	C_OPCODE_READ     byte = 0x02 // [C var]
	C_OPCODE_WRITE    byte = 0x03 // [C var][D value]
	C_OPCODE_READ_ALL byte = 0x04
)

// Server → client opcodes.
const (
	S_OPCODE_AUTH     byte = 0x81 // [C ok]
	S_OPCODE_VALUE    byte = 0x82 // [C var][D value]
	S_OPCODE_SNAPSHOT byte = 0x83 // [C n] n × ([C var][D value])
	S_OPCODE_ERROR    byte = 0x84 // [C code][S message]
)

// Error codes carried by S_OPCODE_ERROR.
const (
	ErrCodeAuth        byte = 1
	ErrCodeUnknownVar  byte = 2
	ErrCodeNotWritable byte = 3
	ErrCodeMalformed   byte = 4
	ErrCodeOpcode      byte = 5
	ErrCodeInternal    byte = 6
)

// OpcodeName returns a log-friendly opcode name.
func OpcodeName(op byte) string {
	switch op {
	case C_OPCODE_AUTH:
		return "C_AUTH"
	case C_OPCODE_READ:
		return "C_READ"
	case C_OPCODE_WRITE:
		return "C_WRITE"
	case C_OPCODE_READ_ALL:
		return "C_READ_ALL"
	case S_OPCODE_AUTH:
		return "S_AUTH"
	case S_OPCODE_VALUE:
		return "S_VALUE"
	case S_OPCODE_SNAPSHOT:
		return "S_SNAPSHOT"
	case S_OPCODE_ERROR:
		return "S_ERROR"
	}
	return "UNKNOWN"
}
