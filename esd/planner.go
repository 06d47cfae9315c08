package esd

import (
	"github.com/ezstate/esdc/ezl"
	"github.com/ezstate/esdc/script"
)

// planConditions walks a normalized condition tree once, in the order the
// builder will compile it, and queues register writes: the second occurrence
// of a signature claims one of the eight registers at that node, later
// occurrences load it. The queue gains exactly one entry per condition node.
func planConditions(c *context, nodes []*script.If) error {
	for _, node := range nodes {
		sigs, err := collectCalls(c, node.Test, nil)
		if err != nil {
			return err
		}

		var firstWrites []string
		for _, sig := range sigs {
			key := sig.Key()
			switch {
			case !c.seen[key]:
				c.seen[key] = true
			case !c.queued[key] && c.planned < ezl.NumRegisters:
				c.queued[key] = true
				c.planned++
				firstWrites = append(firstWrites, key)
			}
		}
		c.queue = append(c.queue, firstWrites)

		parts, err := splitBody(node.Body)
		if err != nil {
			return err
		}
		if err := planConditions(c, parts.subs); err != nil {
			return err
		}
	}
	return nil
}

// collectCalls gathers the test-call signatures of an expression in
// compilation order. Leaves that are not calls contribute nothing; whether
// they are legal in a test is the expression compiler's concern.
func collectCalls(c *context, node script.Expr, sigs []*CallSignature) ([]*CallSignature, error) {
	switch n := node.(type) {
	case *script.Unary:
		return collectCalls(c, n.Operand, sigs)

	case *script.Logical:
		var err error
		for _, operand := range n.Operands {
			sigs, err = collectCalls(c, operand, sigs)
			if err != nil {
				return nil, err
			}
		}
		return sigs, nil

	case *script.Binary:
		sigs, err := collectCalls(c, n.Left, sigs)
		if err != nil {
			return nil, err
		}
		return collectCalls(c, n.Right, sigs)

	case *script.Compare:
		sigs, err := collectCalls(c, n.Left, sigs)
		if err != nil {
			return nil, err
		}
		return collectCalls(c, n.Right, sigs)

	case *script.Call:
		sig, err := resolveTestCall(c, n)
		if err != nil {
			return nil, err
		}
		return append(sigs, sig), nil

	default:
		return sigs, nil
	}
}
