package esd

import (
	"github.com/ezstate/esdc/ezl"
	"github.com/ezstate/esdc/script"
)

// Submachine calls encode with a fixed bank and an id offset from a base.
const (
	submachineBank = 6
	submachineBase = 0x80000000
)

// compileCommand compiles one command call statement. Keyword argument
// values are appended after the positionals in written order; the engine
// takes arguments by position only.
func compileCommand(c *context, stmt *script.ExprStmt) (*Command, error) {
	call, ok := stmt.Expr.(*script.Call)
	if !ok {
		return nil, Errorf(KindStructure, stmt.Span().Start, "statement must be a command call")
	}

	var bank, id int64
	switch fn := call.Func.(type) {
	case *script.Index:
		if fn.Name != "CALL_STATE_MACHINE" {
			return nil, Errorf(KindStructure, fn.Span().Start, "only CALL_STATE_MACHINE may be called by index")
		}
		idx, ok := fn.Index.(*script.IntLiteral)
		if !ok {
			return nil, Errorf(KindValue, fn.Span().Start, "state machine index must be a non-negative integer literal")
		}
		bank = submachineBank
		id = submachineBase - idx.Value

	case *script.Ident:
		cid, ok := c.schema.LookupCommand(fn.Name)
		if !ok {
			return nil, Errorf(KindUnresolved, fn.Span().Start, "unknown command %q", fn.Name)
		}
		bank, id = cid.Bank, cid.ID

	default:
		return nil, Errorf(KindStructure, call.Span().Start, "command must name a function or CALL_STATE_MACHINE[n]")
	}

	cmd := &Command{Bank: bank, ID: id}
	appendArg := func(arg script.Expr) error {
		enc, err := appendExpr(c, nil, arg)
		if err != nil {
			return err
		}
		cmd.Args = append(cmd.Args, append(enc, byte(ezl.OpTerminate)))
		return nil
	}
	for _, arg := range call.Args {
		if err := appendArg(arg); err != nil {
			return nil, err
		}
	}
	for _, kw := range call.Kwargs {
		if err := appendArg(kw.Value); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

// compileCommandList compiles an enter/exit/ongoing block.
func compileCommandList(c *context, stmts []script.Stmt) ([]*Command, error) {
	var cmds []*Command
	for _, stmt := range stmts {
		es, ok := stmt.(*script.ExprStmt)
		if !ok {
			return nil, Errorf(KindStructure, stmt.Span().Start, "command blocks may contain only command calls")
		}
		cmd, err := compileCommand(c, es)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}
