package ezl

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// ---------------------------------------------------------------------------
// Immediate-value encoders
// ---------------------------------------------------------------------------

// FitsInt32 reports whether n is representable in the int32 immediate form.
func FitsInt32(n int64) bool {
	return n >= math.MinInt32 && n <= math.MaxInt32
}

// AppendInt appends the EZL encoding of an integer: one biased byte for
// values in [-64, 63), otherwise the int32 immediate form. n must fit in
// int32; callers validate ranges.
func AppendInt(dst []byte, n int64) []byte {
	if n >= SmallIntMin && n <= SmallIntMax {
		return append(dst, byte(n+SmallIntBias))
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(int32(n)))
	dst = append(dst, byte(OpInt32))
	return append(dst, buf[:]...)
}

// AppendFloat appends the EZL encoding of a float. Floats are always written
// in the double-precision form.
func AppendFloat(dst []byte, f float64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	dst = append(dst, byte(OpFloat64))
	return append(dst, buf[:]...)
}

// AppendString appends the EZL encoding of a string: the string opcode, the
// UTF-16LE code units, and a double-NUL terminator.
func AppendString(dst []byte, s string) []byte {
	dst = append(dst, byte(OpString))
	for _, u := range utf16.Encode([]rune(s)) {
		dst = append(dst, byte(u), byte(u>>8))
	}
	return append(dst, 0x00, 0x00)
}

// ---------------------------------------------------------------------------
// Builder: Helper for assembling EZL fragments
// ---------------------------------------------------------------------------

// Builder assembles an EZL byte sequence.
type Builder struct {
	bytes []byte
}

// NewBuilder creates a new builder.
func NewBuilder() *Builder {
	return &Builder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the assembled sequence.
func (b *Builder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *Builder) Len() int {
	return len(b.bytes)
}

// Emit appends a bare opcode.
func (b *Builder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitInt appends an encoded integer.
func (b *Builder) EmitInt(n int64) {
	b.bytes = AppendInt(b.bytes, n)
}

// EmitFloat appends an encoded float.
func (b *Builder) EmitFloat(f float64) {
	b.bytes = AppendFloat(b.bytes, f)
}

// EmitString appends an encoded string.
func (b *Builder) EmitString(s string) {
	b.bytes = AppendString(b.bytes, s)
}

// EmitStore appends a register store for the given slot.
func (b *Builder) EmitStore(slot int) {
	b.bytes = append(b.bytes, byte(OpStoreBase)+byte(slot))
}

// EmitLoad appends a register load for the given slot.
func (b *Builder) EmitLoad(slot int) {
	b.bytes = append(b.bytes, byte(OpLoadBase)+byte(slot))
}

// Append splices raw bytes onto the sequence.
func (b *Builder) Append(p []byte) {
	b.bytes = append(b.bytes, p...)
}
