// Package symtab loads the constant tables that scripts reference through
// use declarations and qualified names.
package symtab

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// Value is a constant literal: int64, float64 or string.
type Value any

// Table maps module names to their constant members. Each top-level TOML
// table in a loaded file becomes one module.
type Table struct {
	modules map[string]map[string]Value
}

// New returns an empty table.
func New() *Table {
	return &Table{modules: map[string]map[string]Value{}}
}

// Load reads a constants file and merges its modules into the table.
// Members loaded later override earlier ones of the same name.
func (t *Table) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := t.merge(path, data); err != nil {
		return err
	}
	return nil
}

// LoadReader reads a constants file from r; name appears in errors.
func (t *Table) LoadReader(name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", name, err)
	}
	return t.merge(name, data)
}

func (t *Table) merge(name string, data []byte) error {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse error in %s: %w", name, err)
	}

	for module, entry := range raw {
		members, ok := entry.(map[string]any)
		if !ok {
			return fmt.Errorf("constants %s: %s: top-level entries must be tables", name, module)
		}
		dst := t.modules[module]
		if dst == nil {
			dst = map[string]Value{}
			t.modules[module] = dst
		}
		for member, v := range members {
			switch c := v.(type) {
			case int64, float64, string:
				dst[member] = c
			case bool:
				// Booleans compile as integers everywhere else too.
				if c {
					dst[member] = int64(1)
				} else {
					dst[member] = int64(0)
				}
			default:
				return fmt.Errorf("constants %s: %s.%s: unsupported value type %T", name, module, member, v)
			}
		}
	}
	return nil
}

// Clone returns an independent copy of the table. Cloning a nil table
// returns an empty one, so callers can layer per-script constants over an
// optional base.
func (t *Table) Clone() *Table {
	clone := New()
	if t == nil {
		return clone
	}
	for module, members := range t.modules {
		dst := make(map[string]Value, len(members))
		for member, v := range members {
			dst[member] = v
		}
		clone.modules[module] = dst
	}
	return clone
}

// Lookup returns the constant value for module.member.
func (t *Table) Lookup(module, member string) (Value, bool) {
	members, ok := t.modules[module]
	if !ok {
		return nil, false
	}
	v, ok := members[member]
	return v, ok
}

// Modules returns the loaded module names, sorted.
func (t *Table) Modules() []string {
	names := make([]string, 0, len(t.modules))
	for name := range t.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Members returns the member names of one module, sorted.
func (t *Table) Members(module string) []string {
	members, ok := t.modules[module]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
