package esd

import (
	"strconv"
	"strings"

	"github.com/ezstate/esdc/ezl"
)

// ---------------------------------------------------------------------------
// Resolved values
// ---------------------------------------------------------------------------

// ValueKind discriminates resolved argument values.
type ValueKind int

const (
	ValueInt ValueKind = iota
	ValueFloat
	ValueString
	ValueMachineArg
	ValueSymbol
)

// Value is a resolved argument of a test or command call. Machine-arg values
// carry the argument index in Int; symbol values carry the name in Str.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
}

func IntValue(n int64) Value        { return Value{Kind: ValueInt, Int: n} }
func FloatValue(f float64) Value    { return Value{Kind: ValueFloat, Float: f} }
func StringValue(s string) Value    { return Value{Kind: ValueString, Str: s} }
func MachineArgValue(i int64) Value { return Value{Kind: ValueMachineArg, Int: i} }
func SymbolValue(name string) Value { return Value{Kind: ValueSymbol, Str: name} }

// appendEZL appends the value's encoding. Values are validated when they are
// resolved, so encoding cannot fail.
func (v Value) appendEZL(dst []byte) []byte {
	switch v.Kind {
	case ValueFloat:
		return ezl.AppendFloat(dst, v.Float)
	case ValueString:
		return ezl.AppendString(dst, v.Str)
	case ValueMachineArg:
		dst = ezl.AppendInt(dst, v.Int)
		return append(dst, byte(ezl.OpMachineArg))
	case ValueSymbol:
		if v.Str == "MACHINE_CALL_STATUS" {
			return append(dst, byte(ezl.OpCallStatus))
		}
		return append(dst, byte(ezl.OpOngoing))
	default:
		return ezl.AppendInt(dst, v.Int)
	}
}

// key returns a canonical form used for signature identity.
func (v Value) key() string {
	switch v.Kind {
	case ValueFloat:
		return "f" + strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValueString:
		return "s" + strconv.Quote(v.Str)
	case ValueMachineArg:
		return "a" + strconv.FormatInt(v.Int, 10)
	case ValueSymbol:
		return "y" + v.Str
	default:
		return "i" + strconv.FormatInt(v.Int, 10)
	}
}

// CallSignature identifies a test call by resolved function id and resolved
// argument values. Repeated signatures within one state share a register.
type CallSignature struct {
	ID   int64
	Args []Value
}

// Key returns a canonical identity string for map use.
func (c *CallSignature) Key() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(c.ID, 10))
	for _, a := range c.Args {
		b.WriteByte('|')
		b.WriteString(a.key())
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Registers
// ---------------------------------------------------------------------------

// RegisterFile is the per-state bank of eight condition registers. A slot
// holds the key of the signature stored there, or "" while empty.
type RegisterFile struct {
	slots [ezl.NumRegisters]string
}

// Find returns the slot holding key.
func (r *RegisterFile) Find(key string) (int, bool) {
	for i, k := range r.slots {
		if k != "" && k == key {
			return i, true
		}
	}
	return 0, false
}

// Claim stores key in the lowest empty slot.
func (r *RegisterFile) Claim(key string) (int, bool) {
	for i, k := range r.slots {
		if k == "" {
			r.slots[i] = key
			return i, true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Compiled machine
// ---------------------------------------------------------------------------

// Command is a compiled engine call: bank, function id and the encoded
// arguments, each already terminated.
type Command struct {
	Bank int64
	ID   int64
	Args [][]byte
}

// Condition is one compiled conditional outcome of a state. NextState -1
// means the condition changes no state.
type Condition struct {
	NextState     int
	Test          []byte
	PassCommands  []*Command
	Subconditions []*Condition
}

// State is one compiled state.
type State struct {
	Index       int
	Description string
	Conditions  []*Condition
	Enter       []*Command
	Exit        []*Command
	Ongoing     []*Command
}

// StateMachine is a compiled script.
type StateMachine struct {
	Description string
	States      map[int]*State
}
