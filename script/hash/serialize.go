package hash

import (
	"encoding/binary"
	"math"

	"github.com/ezstate/esdc/script"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of a parsed script.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int64=8B)
//   - Floats: IEEE 754 big-endian 8B
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Booleans and operators: single byte
//   - Lists: uint32 big-endian count + elements
//   - Child nodes: serialized inline (flat)
//
// Source positions and the source name are excluded, so two scripts that
// differ only in formatting or comments serialize identically.
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of a script AST.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(s *script.Script) []byte {
	w := &serializer{buf: make([]byte, 0, 512)}
	w.writeByte(HashVersion)
	w.serializeScript(s)
	return w.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeFloat64(v float64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) serializeScript(sc *script.Script) {
	s.writeByte(TagScript)
	s.writeString(sc.Description)
	s.writeUint32(uint32(len(sc.Uses)))
	for _, u := range sc.Uses {
		s.writeByte(TagUse)
		s.writeString(u.Path)
	}
	s.writeUint32(uint32(len(sc.States)))
	for _, st := range sc.States {
		s.serializeState(st)
	}
}

func (s *serializer) serializeState(st *script.StateDecl) {
	s.writeByte(TagState)
	s.writeString(st.Name)
	s.writeString(st.Annotation)
	s.writeUint32(uint32(len(st.Members)))
	for _, m := range st.Members {
		s.writeByte(TagMember)
		s.writeString(m.Kind)
		s.writeUint32(uint32(len(m.Prev)))
		for _, p := range m.Prev {
			s.writeInt64(p)
		}
		s.serializeStmts(m.Body)
	}
}

func (s *serializer) serializeStmts(stmts []script.Stmt) {
	s.writeUint32(uint32(len(stmts)))
	for _, stmt := range stmts {
		s.serializeStmt(stmt)
	}
}

func (s *serializer) serializeStmt(stmt script.Stmt) {
	switch n := stmt.(type) {
	case *script.If:
		s.writeByte(TagIf)
		s.serializeExpr(n.Test)
		s.serializeStmts(n.Body)
		s.serializeStmts(n.Else)

	case *script.Return:
		s.writeByte(TagReturn)
		s.serializeExpr(n.Value)

	case *script.ExprStmt:
		s.writeByte(TagExprStmt)
		s.serializeExpr(n.Expr)
	}
}

func (s *serializer) serializeExpr(expr script.Expr) {
	switch n := expr.(type) {
	case *script.IntLiteral:
		s.writeByte(TagIntLiteral)
		s.writeInt64(n.Value)

	case *script.FloatLiteral:
		s.writeByte(TagFloatLiteral)
		s.writeFloat64(n.Value)

	case *script.StringLiteral:
		s.writeByte(TagStringLiteral)
		s.writeString(n.Value)

	case *script.BoolLiteral:
		s.writeByte(TagBoolLiteral)
		s.writeBool(n.Value)

	case *script.Ident:
		s.writeByte(TagIdent)
		s.writeString(n.Name)

	case *script.Selector:
		s.writeByte(TagSelector)
		s.writeString(n.Module)
		s.writeString(n.Member)

	case *script.Index:
		s.writeByte(TagIndex)
		s.writeString(n.Name)
		s.serializeExpr(n.Index)

	case *script.Unary:
		s.writeByte(TagUnary)
		s.writeByte(byte(n.Op))
		s.serializeExpr(n.Operand)

	case *script.Logical:
		s.writeByte(TagLogical)
		s.writeByte(byte(n.Op))
		s.writeUint32(uint32(len(n.Operands)))
		for _, op := range n.Operands {
			s.serializeExpr(op)
		}

	case *script.Binary:
		s.writeByte(TagBinary)
		s.writeByte(byte(n.Op))
		s.serializeExpr(n.Left)
		s.serializeExpr(n.Right)

	case *script.Compare:
		s.writeByte(TagCompare)
		s.writeByte(byte(n.Op))
		s.serializeExpr(n.Left)
		s.serializeExpr(n.Right)

	case *script.Call:
		s.writeByte(TagCall)
		s.serializeExpr(n.Func)
		s.writeUint32(uint32(len(n.Args)))
		for _, arg := range n.Args {
			s.serializeExpr(arg)
		}
		s.writeUint32(uint32(len(n.Kwargs)))
		for _, kw := range n.Kwargs {
			s.writeByte(TagKwarg)
			s.writeString(kw.Name)
			s.serializeExpr(kw.Value)
		}
	}
}
