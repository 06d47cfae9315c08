package esd

import (
	"github.com/ezstate/esdc/schema"
	"github.com/ezstate/esdc/symtab"
)

// context carries everything needed while compiling one state. Registers and
// the planner queue start empty for every state.
type context struct {
	schema *schema.Schema
	consts *symtab.Table
	states map[string]int

	registers RegisterFile
	seen      map[string]bool
	queued    map[string]bool
	planned   int
	queue     [][]string // one entry of signature keys per condition node
	pending   []string   // the current node's unconsumed first-time writes
}

func newContext(sch *schema.Schema, consts *symtab.Table, states map[string]int) *context {
	return &context{
		schema: sch,
		consts: consts,
		states: states,
		seen:   map[string]bool{},
		queued: map[string]bool{},
	}
}

// nextPending shifts the queue entry planned for the next condition node.
func (c *context) nextPending() {
	if len(c.queue) == 0 {
		c.pending = nil
		return
	}
	c.pending = c.queue[0]
	c.queue = c.queue[1:]
}

// takePending removes and reports a pending first-time write for key.
func (c *context) takePending(key string) bool {
	for i, k := range c.pending {
		if k == key {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}
