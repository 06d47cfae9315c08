package esd

import (
	"github.com/ezstate/esdc/ezl"
	"github.com/ezstate/esdc/script"
)

// Equals-suffix requests for test calls. The front end only produces the
// equals-one form (through not); equals-zero is part of the encoding.
const (
	equalsNone = -1
	equalsZero = 0
	equalsOne  = 1
)

// appendExpr appends the encoding of a test expression.
func appendExpr(c *context, dst []byte, node script.Expr) ([]byte, error) {
	switch n := node.(type) {
	case *script.IntLiteral:
		if !ezl.FitsInt32(n.Value) {
			return nil, Errorf(KindValue, n.Span().Start, "integer %d does not fit in 32 bits", n.Value)
		}
		return ezl.AppendInt(dst, n.Value), nil

	case *script.FloatLiteral:
		return ezl.AppendFloat(dst, n.Value), nil

	case *script.StringLiteral:
		return ezl.AppendString(dst, n.Value), nil

	case *script.BoolLiteral:
		if n.Value {
			return ezl.AppendInt(dst, 1), nil
		}
		return ezl.AppendInt(dst, 0), nil

	case *script.Unary:
		return appendUnary(c, dst, n)

	case *script.Logical:
		return appendChain(c, dst, n)

	case *script.Binary:
		dst, err := appendExpr(c, dst, n.Left)
		if err != nil {
			return nil, err
		}
		dst, err = appendExpr(c, dst, n.Right)
		if err != nil {
			return nil, err
		}
		op, ok := c.schema.BinaryOpcode(n.Op)
		if !ok {
			return nil, Errorf(KindStructure, n.Span().Start, "unsupported operator %s", n.Op)
		}
		return append(dst, byte(op)), nil

	case *script.Compare:
		dst, err := appendExpr(c, dst, n.Left)
		if err != nil {
			return nil, err
		}
		dst, err = appendExpr(c, dst, n.Right)
		if err != nil {
			return nil, err
		}
		op, ok := c.schema.CompareOpcode(n.Op)
		if !ok {
			return nil, Errorf(KindStructure, n.Span().Start, "unsupported operator %s", n.Op)
		}
		return append(dst, byte(op)), nil

	case *script.Call:
		return appendTestCall(c, dst, n, equalsNone)

	case *script.Ident:
		switch n.Name {
		case "MACHINE_CALL_STATUS":
			return append(dst, byte(ezl.OpCallStatus)), nil
		case "ONGOING":
			return append(dst, byte(ezl.OpOngoing)), nil
		}
		return nil, Errorf(KindStructure, n.Span().Start, "only MACHINE_CALL_STATUS and ONGOING may appear as bare names")

	case *script.Index:
		if n.Name != "MACHINE_ARGS" {
			return nil, Errorf(KindStructure, n.Span().Start, "only MACHINE_ARGS may be indexed here")
		}
		idx, ok := n.Index.(*script.IntLiteral)
		if !ok {
			return nil, Errorf(KindStructure, n.Span().Start, "MACHINE_ARGS index must be a non-negative integer literal")
		}
		if !ezl.FitsInt32(idx.Value) {
			return nil, Errorf(KindValue, n.Span().Start, "integer %d does not fit in 32 bits", idx.Value)
		}
		dst = ezl.AppendInt(dst, idx.Value)
		return append(dst, byte(ezl.OpMachineArg)), nil

	case *script.Selector:
		v, err := lookupConst(c, n)
		if err != nil {
			return nil, err
		}
		return v.appendEZL(dst), nil

	default:
		return nil, Errorf(KindStructure, node.Span().Start, "expression is not allowed in a test")
	}
}

func appendUnary(c *context, dst []byte, n *script.Unary) ([]byte, error) {
	switch n.Op {
	case script.OpNeg:
		switch operand := n.Operand.(type) {
		case *script.IntLiteral:
			if !ezl.FitsInt32(-operand.Value) {
				return nil, Errorf(KindValue, n.Span().Start, "integer %d does not fit in 32 bits", -operand.Value)
			}
			return ezl.AppendInt(dst, -operand.Value), nil
		case *script.FloatLiteral:
			return ezl.AppendFloat(dst, -operand.Value), nil
		}
		return nil, Errorf(KindValue, n.Span().Start, "cannot negate a non-numeric value")

	case script.OpNot:
		call, ok := n.Operand.(*script.Call)
		if !ok {
			return nil, Errorf(KindStructure, n.Span().Start, "not may only be applied to test calls")
		}
		return appendTestCall(c, dst, call, equalsOne)
	}
	return nil, Errorf(KindStructure, n.Span().Start, "unsupported unary operator")
}

// appendChain compiles an and/or chain. Each operand is followed by a
// combinator terminator: end-if-false when an and chain has no register
// writes left to perform, continue otherwise. The chain operator itself is
// appended after every operand beyond the first.
func appendChain(c *context, dst []byte, n *script.Logical) ([]byte, error) {
	isAnd := n.Op == script.OpAnd
	for i, operand := range n.Operands {
		var err error
		dst, err = appendExpr(c, dst, operand)
		if err != nil {
			return nil, err
		}
		if isAnd && len(c.pending) == 0 {
			dst = append(dst, byte(ezl.OpEndIfFalse))
		} else {
			dst = append(dst, byte(ezl.OpContinue))
		}
		if i > 0 {
			if isAnd {
				dst = append(dst, byte(ezl.OpAnd))
			} else {
				dst = append(dst, byte(ezl.OpOr))
			}
		}
	}
	return dst, nil
}

// appendTestCall compiles a test call. A signature already held in a
// register compiles to its load byte alone. Otherwise the call is encoded in
// full, claims a register if one was planned for it here, and finally takes
// the requested equals suffix.
func appendTestCall(c *context, dst []byte, call *script.Call, equals int) ([]byte, error) {
	sig, err := resolveTestCall(c, call)
	if err != nil {
		return nil, err
	}
	key := sig.Key()

	if slot, ok := c.registers.Find(key); ok {
		return append(dst, byte(ezl.OpLoadBase)+byte(slot)), nil
	}

	if !ezl.FitsInt32(sig.ID) {
		return nil, Errorf(KindValue, call.Span().Start, "test function id %d does not fit in 32 bits", sig.ID)
	}
	dst = ezl.AppendInt(dst, sig.ID)
	for _, arg := range sig.Args {
		dst = arg.appendEZL(dst)
	}
	term, ok := c.schema.Terminator(len(sig.Args))
	if !ok {
		return nil, Errorf(KindValue, call.Span().Start, "no encoding for %d-argument calls", len(sig.Args))
	}
	dst = append(dst, byte(term))

	if c.takePending(key) {
		slot, ok := c.registers.Claim(key)
		if !ok {
			return nil, Errorf(KindValue, call.Span().Start, "no free condition register")
		}
		dst = append(dst, byte(ezl.OpStoreBase)+byte(slot))
	}

	if equals != equalsNone {
		dst = ezl.AppendInt(dst, int64(equals))
		dst = append(dst, byte(ezl.OpEq))
	}
	return dst, nil
}
