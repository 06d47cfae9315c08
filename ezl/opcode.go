// Package ezl defines the EzState expression language byte encoding: opcode
// values, immediate-value encoders, and a small builder for assembling
// fragments. Test expressions and command arguments in compiled state
// machines are sequences of these bytes.
package ezl

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single EZL instruction byte.
type Opcode byte

// Small integers in [-64, 63) encode as one biased byte with no opcode.
const (
	SmallIntBias = 64 // encoded byte = value + 64
	SmallIntMin  = -64
	SmallIntMax  = 62 // 63 already needs the int32 form
)

// Immediate values
const (
	OpFloat32 Opcode = 0x80 // push float32 (4 bytes LE; defined by the format, never emitted)
	OpFloat64 Opcode = 0x81 // push float64 (8 bytes LE)
	OpInt32   Opcode = 0x82 // push int32 (4 bytes LE)
	OpString  Opcode = 0xA5 // push UTF-16LE string, double-NUL terminated
)

// Operators
const (
	OpAdd   Opcode = 0x8C
	OpSub   Opcode = 0x8D
	OpMul   Opcode = 0x8E
	OpDiv   Opcode = 0x8F
	OpMod   Opcode = 0x90
	OpGtEq  Opcode = 0x91
	OpGt    Opcode = 0x92
	OpLtEq  Opcode = 0x93
	OpLt    Opcode = 0x94
	OpEq    Opcode = 0x95
	OpNotEq Opcode = 0x96
)

// Logical chains
const (
	OpAnd        Opcode = 0x98 // combine the previous two results with AND
	OpOr         Opcode = 0x99 // combine the previous two results with OR
	OpContinue   Opcode = 0xA6 // keep evaluating after a false operand
	OpEndIfFalse Opcode = 0xB7 // stop evaluating after a false operand
)

// Function calls. A call is the encoded function id, the encoded arguments,
// and a terminator byte carrying the argument count: OpCall0 + argc.
const OpCall0 Opcode = 0x84

// Machine state access
const (
	OpMachineArg Opcode = 0xB8 // pop index, push machine argument
	OpCallStatus Opcode = 0xB9 // push submachine call status
	OpOngoing    Opcode = 0xBA // push ongoing flag
)

// OpTerminate ends a test expression or a command argument.
const OpTerminate Opcode = 0xA1

// Registers. Eight slots cache repeated call results within one state:
// store into slot i is OpStoreBase+i, load from slot i is OpLoadBase+i.
const (
	OpStoreBase  Opcode = 0xA7 // 167
	OpLoadBase   Opcode = 0xAF // 175
	NumRegisters        = 8
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // inline operand bytes (-1 = variable length)
}

// opcodeTable maps fixed opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpFloat32:    {"FLOAT32", 4},
	OpFloat64:    {"FLOAT64", 8},
	OpInt32:      {"INT32", 4},
	OpString:     {"STRING", -1},
	OpAdd:        {"ADD", 0},
	OpSub:        {"SUB", 0},
	OpMul:        {"MUL", 0},
	OpDiv:        {"DIV", 0},
	OpMod:        {"MOD", 0},
	OpGtEq:       {"GTE", 0},
	OpGt:         {"GT", 0},
	OpLtEq:       {"LTE", 0},
	OpLt:         {"LT", 0},
	OpEq:         {"EQ", 0},
	OpNotEq:      {"NEQ", 0},
	OpAnd:        {"AND", 0},
	OpOr:         {"OR", 0},
	OpContinue:   {"CONTINUE", 0},
	OpEndIfFalse: {"END_IF_FALSE", 0},
	OpMachineArg: {"MACHINE_ARG", 0},
	OpCallStatus: {"CALL_STATUS", 0},
	OpOngoing:    {"ONGOING", 0},
	OpTerminate:  {"TERMINATE", 0},
}

// Info returns the metadata for an opcode. Small-int pushes, register
// stores/loads and call terminators are ranges rather than table entries.
func (op Opcode) Info() OpcodeInfo {
	if op < 0x7F {
		return OpcodeInfo{Name: fmt.Sprintf("PUSH_%d", int(op)-SmallIntBias)}
	}
	if op >= OpCall0 && op < OpCall0+7 {
		return OpcodeInfo{Name: fmt.Sprintf("CALL_ARGS_%d", int(op-OpCall0))}
	}
	if op >= OpStoreBase && op < OpStoreBase+NumRegisters {
		return OpcodeInfo{Name: fmt.Sprintf("STORE_REG_%d", int(op-OpStoreBase))}
	}
	if op >= OpLoadBase && op < OpLoadBase+NumRegisters {
		return OpcodeInfo{Name: fmt.Sprintf("LOAD_REG_%d", int(op-OpLoadBase))}
	}
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}
