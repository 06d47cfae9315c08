// Package schema defines the lookup tables that map symbolic command and
// test names onto their numeric EzState encodings for one machine type.
package schema

import (
	"embed"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/ezstate/esdc/ezl"
	"github.com/ezstate/esdc/script"
)

//go:embed profiles/*.toml
var profiles embed.FS

// CommandID identifies an engine command by bank and function id.
type CommandID struct {
	Bank int64 `toml:"bank"`
	ID   int64 `toml:"id"`
}

// Schema holds the name tables of one machine type together with the
// operator and argument-count encodings.
type Schema struct {
	Type     string
	Commands map[string]CommandID
	Tests    map[string]int64

	binaryOps   map[script.BinaryOp]ezl.Opcode
	compareOps  map[script.CompareOp]ezl.Opcode
	terminators map[int]ezl.Opcode
}

// Names not present in the tables fall back to encoded forms.
var (
	commandFallbackRE = regexp.MustCompile(`^Command_(?:talk|chr)_([0-9]+)_([0-9]+)$`)
	testFallbackRE    = regexp.MustCompile(`^Test_(?:talk|chr)_([0-9]+)$`)
)

// New returns an empty schema of the given machine type carrying the
// default operator and terminator tables.
func New(machineType string) *Schema {
	return &Schema{
		Type:     machineType,
		Commands: map[string]CommandID{},
		Tests:    map[string]int64{},
		binaryOps: map[script.BinaryOp]ezl.Opcode{
			script.OpAdd: ezl.OpAdd,
			script.OpSub: ezl.OpSub,
			script.OpMul: ezl.OpMul,
			script.OpDiv: ezl.OpDiv,
			script.OpMod: ezl.OpMod,
		},
		compareOps: map[script.CompareOp]ezl.Opcode{
			script.OpEq:    ezl.OpEq,
			script.OpNotEq: ezl.OpNotEq,
			script.OpLt:    ezl.OpLt,
			script.OpLtEq:  ezl.OpLtEq,
			script.OpGt:    ezl.OpGt,
			script.OpGtEq:  ezl.OpGtEq,
		},
		terminators: map[int]ezl.Opcode{
			0: ezl.OpCall0,
			1: ezl.OpCall0 + 1,
			2: ezl.OpCall0 + 2,
			3: ezl.OpCall0 + 3,
			4: ezl.OpCall0 + 4,
			5: ezl.OpCall0 + 5,
			6: ezl.OpCall0 + 6,
		},
	}
}

// Default returns the embedded profile for the given machine type.
func Default(machineType string) (*Schema, error) {
	data, err := profiles.ReadFile("profiles/" + machineType + ".toml")
	if err != nil {
		return nil, fmt.Errorf("no built-in profile for machine type %q", machineType)
	}
	s, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("built-in profile %s: %w", machineType, err)
	}
	return s, nil
}

// Load reads a schema from a TOML file. Loaded schemas may omit the type
// field and act as overlays for Merge.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	s, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return s, nil
}

type schemaFile struct {
	Type     string               `toml:"type"`
	Commands map[string]CommandID `toml:"commands"`
	Tests    map[string]int64     `toml:"tests"`
}

func parse(data []byte) (*Schema, error) {
	var f schemaFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	s := New(f.Type)
	for name, id := range f.Commands {
		s.Commands[name] = id
	}
	for name, id := range f.Tests {
		s.Tests[name] = id
	}
	return s, nil
}

// Merge copies the command and test entries of other into s, overwriting
// names already present. A typed overlay must match the receiver's type.
func (s *Schema) Merge(other *Schema) error {
	if other.Type != "" && s.Type != "" && other.Type != s.Type {
		return fmt.Errorf("cannot merge %s schema into %s schema", other.Type, s.Type)
	}
	for name, id := range other.Commands {
		s.Commands[name] = id
	}
	for name, id := range other.Tests {
		s.Tests[name] = id
	}
	return nil
}

// LookupCommand resolves a command name to its bank and id, consulting the
// table first and the encoded-name fallback second.
func (s *Schema) LookupCommand(name string) (CommandID, bool) {
	if id, ok := s.Commands[name]; ok {
		return id, true
	}
	if m := commandFallbackRE.FindStringSubmatch(name); m != nil {
		bank, err1 := strconv.ParseInt(m[1], 10, 64)
		id, err2 := strconv.ParseInt(m[2], 10, 64)
		if err1 == nil && err2 == nil {
			return CommandID{Bank: bank, ID: id}, true
		}
	}
	return CommandID{}, false
}

// LookupTest resolves a test function name to its id, consulting the table
// first and the encoded-name fallback second.
func (s *Schema) LookupTest(name string) (int64, bool) {
	if id, ok := s.Tests[name]; ok {
		return id, true
	}
	if m := testFallbackRE.FindStringSubmatch(name); m != nil {
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return id, true
		}
	}
	return 0, false
}

// BinaryOpcode returns the opcode for an arithmetic operator.
func (s *Schema) BinaryOpcode(op script.BinaryOp) (ezl.Opcode, bool) {
	b, ok := s.binaryOps[op]
	return b, ok
}

// CompareOpcode returns the opcode for a comparison operator.
func (s *Schema) CompareOpcode(op script.CompareOp) (ezl.Opcode, bool) {
	b, ok := s.compareOps[op]
	return b, ok
}

// Terminator returns the call terminator byte for an argument count.
func (s *Schema) Terminator(argc int) (ezl.Opcode, bool) {
	b, ok := s.terminators[argc]
	return b, ok
}
