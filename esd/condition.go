package esd

import (
	"github.com/ezstate/esdc/ezl"
	"github.com/ezstate/esdc/script"
)

// alwaysTrue is the test of an unconditional transition.
func alwaysTrue() []byte {
	return append(ezl.AppendInt(nil, 1), byte(ezl.OpTerminate))
}

// bodyParts is a conditional body split into its three ordered sections.
type bodyParts struct {
	commands []*script.ExprStmt
	subs     []*script.If
	ret      *script.Return
}

// splitBody orders a conditional body as pass commands, then subconditions,
// then an optional final return. The planner and the builder both split
// through here, so they always agree on the tree.
func splitBody(stmts []script.Stmt) (bodyParts, error) {
	var parts bodyParts
	for _, stmt := range stmts {
		if parts.ret != nil {
			return parts, Errorf(KindStructure, parts.ret.Span().Start, "return must be the last statement in a conditional block")
		}
		switch s := stmt.(type) {
		case *script.ExprStmt:
			if len(parts.subs) > 0 {
				return parts, Errorf(KindStructure, s.Span().Start, "pass command appears after a subcondition")
			}
			if _, ok := s.Expr.(*script.Call); !ok {
				return parts, Errorf(KindStructure, s.Span().Start, "statement must be a command call")
			}
			parts.commands = append(parts.commands, s)
		case *script.If:
			parts.subs = append(parts.subs, s)
		case *script.Return:
			parts.ret = s
		default:
			return parts, Errorf(KindStructure, stmt.Span().Start, "statement is not allowed in a conditional block")
		}
	}
	return parts, nil
}

// normalizeConditions rewrites else blocks into trailing always-true
// conditionals throughout the tree. An else is legal only on the last
// conditional of its block.
func normalizeConditions(nodes []*script.If) ([]*script.If, error) {
	out := make([]*script.If, 0, len(nodes))
	for i, node := range nodes {
		if len(node.Else) > 0 && i != len(nodes)-1 {
			return nil, Errorf(KindStructure, node.Span().Start, "else is only allowed on the last conditional of a block")
		}
		body, err := normalizeBody(node.Body)
		if err != nil {
			return nil, err
		}
		out = append(out, &script.If{SpanVal: node.SpanVal, Test: node.Test, Body: body})
		if len(node.Else) > 0 {
			elseBody, err := normalizeBody(node.Else)
			if err != nil {
				return nil, err
			}
			out = append(out, &script.If{
				SpanVal: node.SpanVal,
				Test:    &script.IntLiteral{SpanVal: node.SpanVal, Value: 1},
				Body:    elseBody,
			})
		}
	}
	return out, nil
}

// normalizeBody rewrites the subcondition run inside one conditional body.
func normalizeBody(stmts []script.Stmt) ([]script.Stmt, error) {
	parts, err := splitBody(stmts)
	if err != nil {
		return nil, err
	}
	subs, err := normalizeConditions(parts.subs)
	if err != nil {
		return nil, err
	}
	out := make([]script.Stmt, 0, len(parts.commands)+len(subs)+1)
	for _, cmd := range parts.commands {
		out = append(out, cmd)
	}
	for _, sub := range subs {
		out = append(out, sub)
	}
	if parts.ret != nil {
		out = append(out, parts.ret)
	}
	return out, nil
}

// buildConditions compiles a state's test block. A block holding a lone
// return compiles to a single unconditional transition; otherwise every
// top-level statement must be a conditional.
func buildConditions(c *context, stmts []script.Stmt) ([]*Condition, error) {
	if len(stmts) == 1 {
		if ret, ok := stmts[0].(*script.Return); ok {
			next, err := resolveNextState(c, ret)
			if err != nil {
				return nil, err
			}
			return []*Condition{{NextState: next, Test: alwaysTrue()}}, nil
		}
	}

	nodes := make([]*script.If, 0, len(stmts))
	for _, stmt := range stmts {
		node, ok := stmt.(*script.If)
		if !ok {
			return nil, Errorf(KindStructure, stmt.Span().Start, "test block must contain only conditionals")
		}
		nodes = append(nodes, node)
	}

	normalized, err := normalizeConditions(nodes)
	if err != nil {
		return nil, err
	}
	if err := planConditions(c, normalized); err != nil {
		return nil, err
	}
	return buildConditionRun(c, normalized)
}

// buildConditionRun compiles a run of condition nodes, consuming one planner
// queue entry per node. Subconditions share the state's register context.
func buildConditionRun(c *context, nodes []*script.If) ([]*Condition, error) {
	var conditions []*Condition
	for _, node := range nodes {
		c.nextPending()

		test, err := appendExpr(c, nil, node.Test)
		if err != nil {
			return nil, err
		}
		test = append(test, byte(ezl.OpTerminate))

		parts, err := splitBody(node.Body)
		if err != nil {
			return nil, err
		}

		var passCommands []*Command
		for _, stmt := range parts.commands {
			cmd, err := compileCommand(c, stmt)
			if err != nil {
				return nil, err
			}
			passCommands = append(passCommands, cmd)
		}

		subs, err := buildConditionRun(c, parts.subs)
		if err != nil {
			return nil, err
		}

		next := -1
		if parts.ret != nil {
			next, err = resolveNextState(c, parts.ret)
			if err != nil {
				return nil, err
			}
		}

		conditions = append(conditions, &Condition{
			NextState:     next,
			Test:          test,
			PassCommands:  passCommands,
			Subconditions: subs,
		})
	}
	return conditions, nil
}

// resolveNextState maps a return value to a state index; -1 selects none.
func resolveNextState(c *context, ret *script.Return) (int, error) {
	switch v := ret.Value.(type) {
	case *script.Ident:
		index, ok := c.states[v.Name]
		if !ok {
			return 0, Errorf(KindUnresolved, v.Span().Start, "unknown state %q", v.Name)
		}
		return index, nil
	case *script.Unary:
		if v.Op == script.OpNeg {
			if n, ok := v.Operand.(*script.IntLiteral); ok && n.Value == 1 {
				return -1, nil
			}
		}
	}
	return 0, Errorf(KindStructure, ret.Span().Start, "next state must be a state name or -1")
}
