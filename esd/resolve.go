package esd

import (
	"github.com/ezstate/esdc/ezl"
	"github.com/ezstate/esdc/script"
)

// resolveTestCall resolves a test call to its signature. The planner and the
// expression compiler both come through here, so a call that cannot be
// resolved fails identically in either phase.
func resolveTestCall(c *context, call *script.Call) (*CallSignature, error) {
	name, ok := call.Func.(*script.Ident)
	if !ok {
		return nil, Errorf(KindStructure, call.Span().Start, "test call must name a plain function")
	}
	if len(call.Kwargs) > 0 {
		return nil, Errorf(KindStructure, call.Kwargs[0].NamePos, "keyword arguments are not allowed in test functions")
	}

	id, ok := c.schema.LookupTest(name.Name)
	if !ok {
		return nil, Errorf(KindUnresolved, name.Span().Start, "unknown test function %q", name.Name)
	}

	sig := &CallSignature{ID: id}
	for _, arg := range call.Args {
		v, err := resolveArgValue(c, arg)
		if err != nil {
			return nil, err
		}
		sig.Args = append(sig.Args, v)
	}
	return sig, nil
}

// resolveArgValue resolves one call argument to a value.
func resolveArgValue(c *context, node script.Expr) (Value, error) {
	switch n := node.(type) {
	case *script.IntLiteral:
		if !ezl.FitsInt32(n.Value) {
			return Value{}, Errorf(KindValue, n.Span().Start, "integer %d does not fit in 32 bits", n.Value)
		}
		return IntValue(n.Value), nil

	case *script.FloatLiteral:
		return FloatValue(n.Value), nil

	case *script.StringLiteral:
		return StringValue(n.Value), nil

	case *script.BoolLiteral:
		if n.Value {
			return IntValue(1), nil
		}
		return IntValue(0), nil

	case *script.Unary:
		if n.Op == script.OpNeg {
			switch operand := n.Operand.(type) {
			case *script.IntLiteral:
				if !ezl.FitsInt32(-operand.Value) {
					return Value{}, Errorf(KindValue, n.Span().Start, "integer %d does not fit in 32 bits", -operand.Value)
				}
				return IntValue(-operand.Value), nil
			case *script.FloatLiteral:
				return FloatValue(-operand.Value), nil
			}
		}
		return Value{}, Errorf(KindValue, n.Span().Start, "function arguments must be literal values")

	case *script.Index:
		if n.Name != "MACHINE_ARGS" {
			return Value{}, Errorf(KindStructure, n.Span().Start, "only MACHINE_ARGS may be indexed here")
		}
		idx, ok := n.Index.(*script.IntLiteral)
		if !ok {
			return Value{}, Errorf(KindStructure, n.Span().Start, "MACHINE_ARGS index must be a non-negative integer literal")
		}
		if !ezl.FitsInt32(idx.Value) {
			return Value{}, Errorf(KindValue, n.Span().Start, "integer %d does not fit in 32 bits", idx.Value)
		}
		return MachineArgValue(idx.Value), nil

	case *script.Selector:
		return lookupConst(c, n)

	case *script.Ident:
		if n.Name == "MACHINE_CALL_STATUS" || n.Name == "ONGOING" {
			return SymbolValue(n.Name), nil
		}
		return Value{}, Errorf(KindStructure, n.Span().Start, "unknown name %q in argument", n.Name)

	default:
		return Value{}, Errorf(KindValue, node.Span().Start, "function arguments must be literal values")
	}
}

// lookupConst resolves a qualified constant reference.
func lookupConst(c *context, sel *script.Selector) (Value, error) {
	if c.consts != nil {
		if v, ok := c.consts.Lookup(sel.Module, sel.Member); ok {
			switch cv := v.(type) {
			case int64:
				if !ezl.FitsInt32(cv) {
					return Value{}, Errorf(KindValue, sel.Span().Start, "constant %s.%s does not fit in 32 bits", sel.Module, sel.Member)
				}
				return IntValue(cv), nil
			case float64:
				return FloatValue(cv), nil
			case string:
				return StringValue(cv), nil
			}
		}
	}
	return Value{}, Errorf(KindUnresolved, sel.Span().Start, "unknown constant %s.%s", sel.Module, sel.Member)
}
