// Package artifact serializes compiled state machines into a canonical,
// version-tagged CBOR envelope and caches build outputs in sqlite keyed by
// input hash.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/ezstate/esdc/esd"
)

// WireVersion tags the artifact envelope. Decoders reject other versions.
const WireVersion = 1

// cborEncMode encodes in canonical mode so equal machines always produce
// identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("artifact: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Machine is the wire form of a compiled state machine. States are ordered
// by index.
type Machine struct {
	Version     int     `cbor:"1,keyasint"`
	Description string  `cbor:"2,keyasint,omitempty"`
	States      []State `cbor:"3,keyasint"`
}

// State is the wire form of one machine state.
type State struct {
	Index       int         `cbor:"1,keyasint"`
	Description string      `cbor:"2,keyasint,omitempty"`
	Conditions  []Condition `cbor:"3,keyasint,omitempty"`
	Enter       []Command   `cbor:"4,keyasint,omitempty"`
	Exit        []Command   `cbor:"5,keyasint,omitempty"`
	Ongoing     []Command   `cbor:"6,keyasint,omitempty"`
}

// Condition is the wire form of one condition node.
type Condition struct {
	NextState     int         `cbor:"1,keyasint"`
	Test          []byte      `cbor:"2,keyasint"`
	PassCommands  []Command   `cbor:"3,keyasint,omitempty"`
	Subconditions []Condition `cbor:"4,keyasint,omitempty"`
}

// Command is the wire form of one command call.
type Command struct {
	Bank int64    `cbor:"1,keyasint"`
	ID   int64    `cbor:"2,keyasint"`
	Args [][]byte `cbor:"3,keyasint,omitempty"`
}

// Marshal serializes a compiled machine to canonical CBOR bytes.
func Marshal(m *esd.StateMachine) ([]byte, error) {
	return cborEncMode.Marshal(toWire(m))
}

// Unmarshal deserializes a compiled machine from CBOR bytes.
func Unmarshal(data []byte) (*esd.StateMachine, error) {
	var w Machine
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("artifact: unmarshal machine: %w", err)
	}
	if w.Version != WireVersion {
		return nil, fmt.Errorf("artifact: unsupported version %d", w.Version)
	}
	return fromWire(&w), nil
}

// Hash returns the SHA-256 of the canonical encoding as a hex string. Equal
// machines hash equal.
func Hash(m *esd.StateMachine) (string, error) {
	data, err := Marshal(m)
	if err != nil {
		return "", err
	}
	return HashData(data), nil
}

// HashData hashes already-marshaled artifact bytes.
func HashData(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func toWire(m *esd.StateMachine) *Machine {
	w := &Machine{Version: WireVersion, Description: m.Description}
	for _, s := range m.States {
		w.States = append(w.States, State{
			Index:       s.Index,
			Description: s.Description,
			Conditions:  wireConditions(s.Conditions),
			Enter:       wireCommands(s.Enter),
			Exit:        wireCommands(s.Exit),
			Ongoing:     wireCommands(s.Ongoing),
		})
	}
	sort.Slice(w.States, func(i, j int) bool { return w.States[i].Index < w.States[j].Index })
	return w
}

func wireConditions(conds []*esd.Condition) []Condition {
	var out []Condition
	for _, c := range conds {
		out = append(out, Condition{
			NextState:     c.NextState,
			Test:          c.Test,
			PassCommands:  wireCommands(c.PassCommands),
			Subconditions: wireConditions(c.Subconditions),
		})
	}
	return out
}

func wireCommands(cmds []*esd.Command) []Command {
	var out []Command
	for _, c := range cmds {
		out = append(out, Command{Bank: c.Bank, ID: c.ID, Args: c.Args})
	}
	return out
}

func fromWire(w *Machine) *esd.StateMachine {
	m := &esd.StateMachine{
		Description: w.Description,
		States:      make(map[int]*esd.State, len(w.States)),
	}
	for _, s := range w.States {
		m.States[s.Index] = &esd.State{
			Index:       s.Index,
			Description: s.Description,
			Conditions:  conditionsFromWire(s.Conditions),
			Enter:       commandsFromWire(s.Enter),
			Exit:        commandsFromWire(s.Exit),
			Ongoing:     commandsFromWire(s.Ongoing),
		}
	}
	return m
}

func conditionsFromWire(conds []Condition) []*esd.Condition {
	var out []*esd.Condition
	for _, c := range conds {
		out = append(out, &esd.Condition{
			NextState:     c.NextState,
			Test:          c.Test,
			PassCommands:  commandsFromWire(c.PassCommands),
			Subconditions: conditionsFromWire(c.Subconditions),
		})
	}
	return out
}

func commandsFromWire(cmds []Command) []*esd.Command {
	var out []*esd.Command
	for _, c := range cmds {
		out = append(out, &esd.Command{Bank: c.Bank, ID: c.ID, Args: c.Args})
	}
	return out
}
