// Package esd compiles state machine scripts into EzState machines: per
// state, a register-planned condition tree plus enter/exit/ongoing command
// lists, all tests and arguments encoded as EZL bytes.
package esd

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ezstate/esdc/schema"
	"github.com/ezstate/esdc/script"
	"github.com/ezstate/esdc/symtab"
)

// A state's annotation is its machine index plus an optional description.
var annotationRE = regexp.MustCompile(`^([0-9]+)(:\s*.*)?$`)

// parseAnnotation extracts the state index and description.
func parseAnnotation(decl *script.StateDecl) (int, string, error) {
	m := annotationRE.FindStringSubmatch(decl.Annotation)
	if m == nil {
		return 0, "", Errorf(KindStructure, decl.AnnPos, `state annotation must be "N" or "N: description"`)
	}
	index, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", Errorf(KindValue, decl.AnnPos, "state index %q out of range", m[1])
	}
	desc := strings.TrimSpace(strings.TrimPrefix(m[2], ":"))
	return index, desc, nil
}

// buildState compiles one state declaration. The test block and each
// command block get their own register context.
func buildState(sch *schema.Schema, consts *symtab.Table, states map[string]int, decl *script.StateDecl, index int, desc string) (*State, error) {
	state := &State{Index: index, Description: desc}
	seen := map[string]bool{}

	for _, member := range decl.Members {
		if member.Kind != "previous_states" && seen[member.Kind] {
			return nil, Errorf(KindStructure, member.Span().Start, "duplicate %s block in state %s", member.Kind, decl.Name)
		}
		seen[member.Kind] = true

		switch member.Kind {
		case "test":
			conditions, err := buildConditions(newContext(sch, consts, states), member.Body)
			if err != nil {
				return nil, err
			}
			state.Conditions = conditions
		case "enter":
			cmds, err := compileCommandList(newContext(sch, consts, states), member.Body)
			if err != nil {
				return nil, err
			}
			state.Enter = cmds
		case "exit":
			cmds, err := compileCommandList(newContext(sch, consts, states), member.Body)
			if err != nil {
				return nil, err
			}
			state.Exit = cmds
		case "ongoing":
			cmds, err := compileCommandList(newContext(sch, consts, states), member.Body)
			if err != nil {
				return nil, err
			}
			state.Ongoing = cmds
		case "previous_states":
			// Informational; transition sources are not encoded.
		default:
			return nil, Errorf(KindStructure, member.Span().Start, "unknown state member %q", member.Kind)
		}
	}
	return state, nil
}

// Compile builds the state machine described by a parsed script. Name
// resolution is two-pass, so a return may reference a state declared later.
// The symbol table may be nil when the script uses no constants.
func Compile(s *script.Script, sch *schema.Schema, consts *symtab.Table) (*StateMachine, error) {
	type stateInfo struct {
		decl  *script.StateDecl
		index int
		desc  string
	}

	indexByName := make(map[string]int, len(s.States))
	indexSeen := map[int]bool{}
	infos := make([]stateInfo, 0, len(s.States))

	for _, decl := range s.States {
		index, desc, err := parseAnnotation(decl)
		if err != nil {
			return nil, err
		}
		if _, ok := indexByName[decl.Name]; ok {
			return nil, Errorf(KindStructure, decl.Span().Start, "duplicate state name %s", decl.Name)
		}
		if indexSeen[index] {
			return nil, Errorf(KindStructure, decl.AnnPos, "duplicate state index %d", index)
		}
		indexByName[decl.Name] = index
		indexSeen[index] = true
		infos = append(infos, stateInfo{decl, index, desc})
	}

	machine := &StateMachine{Description: s.Description, States: make(map[int]*State, len(infos))}
	for _, info := range infos {
		state, err := buildState(sch, consts, indexByName, info.decl, info.index, info.desc)
		if err != nil {
			return nil, err
		}
		machine.States[info.index] = state
	}
	return machine, nil
}

// CompileSource parses and compiles a script in one step.
func CompileSource(name, src string, sch *schema.Schema, consts *symtab.Table) (*StateMachine, error) {
	prog, err := script.Parse(name, src)
	if err != nil {
		return nil, err
	}
	return Compile(prog, sch, consts)
}
