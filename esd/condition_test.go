package esd

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/ezstate/esdc/schema"
	"github.com/ezstate/esdc/symtab"
)

// conditionsOf compiles a two-state machine whose first state holds the
// given test block and returns that state's conditions. State B has index 1.
func conditionsOf(t *testing.T, testBlock string) []*Condition {
	t.Helper()
	src := fmt.Sprintf(`machine "m"

state A {
	"0"
	test {
%s
	}
}

state B {
	"1"
	test {
		return -1
	}
}
`, testBlock)
	m, err := CompileSource("cond.esl", src, schema.New("talk"), nil)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	return m.States[0].Conditions
}

func conditionsErr(t *testing.T, testBlock string) error {
	t.Helper()
	src := fmt.Sprintf("machine \"m\"\n\nstate A {\n\t\"0\"\n\ttest {\n%s\n\t}\n}\n", testBlock)
	_, err := CompileSource("cond.esl", src, schema.New("talk"), nil)
	if err == nil {
		t.Fatal("expected compile error")
	}
	return err
}

func checkTest(t *testing.T, cond *Condition, want []byte) {
	t.Helper()
	if !bytes.Equal(cond.Test, want) {
		t.Errorf("condition test = % X, want % X", cond.Test, want)
	}
}

func TestLoneReturn(t *testing.T) {
	conds := conditionsOf(t, "return B")
	if len(conds) != 1 {
		t.Fatalf("got %d conditions, want 1", len(conds))
	}
	checkTest(t, conds[0], []byte{0x41, 0xA1})
	if conds[0].NextState != 1 {
		t.Errorf("next state = %d, want 1", conds[0].NextState)
	}

	conds = conditionsOf(t, "return -1")
	if conds[0].NextState != -1 {
		t.Errorf("next state = %d, want -1", conds[0].NextState)
	}
	checkTest(t, conds[0], []byte{0x41, 0xA1})
}

func TestSecondOccurrenceStores(t *testing.T) {
	conds := conditionsOf(t, `
		if Test_talk_1() { return B }
		if Test_talk_1() { return -1 }
	`)
	if len(conds) != 2 {
		t.Fatalf("got %d conditions, want 2", len(conds))
	}
	// First occurrence encodes the call in full.
	checkTest(t, conds[0], []byte{0x41, 0x84, 0xA1})
	if conds[0].NextState != 1 {
		t.Errorf("next state = %d, want 1", conds[0].NextState)
	}
	// Second occurrence claims register 0 and stores into it.
	checkTest(t, conds[1], []byte{0x41, 0x84, 0xA7, 0xA1})
	if conds[1].NextState != -1 {
		t.Errorf("next state = %d, want -1", conds[1].NextState)
	}
}

func TestThirdOccurrenceLoads(t *testing.T) {
	conds := conditionsOf(t, `
		if Test_talk_1() { return -1 }
		if Test_talk_1() { return -1 }
		if Test_talk_1() { return -1 }
	`)
	if len(conds) != 3 {
		t.Fatalf("got %d conditions, want 3", len(conds))
	}
	checkTest(t, conds[0], []byte{0x41, 0x84, 0xA1})
	checkTest(t, conds[1], []byte{0x41, 0x84, 0xA7, 0xA1})
	// Only the load byte; no id, terminator, or store.
	checkTest(t, conds[2], []byte{0xAF, 0xA1})
}

func TestSubconditionSharesRegisters(t *testing.T) {
	conds := conditionsOf(t, `
		if Test_talk_1() {
			if Test_talk_1() { return -1 }
			return -1
		}
	`)
	if len(conds) != 1 {
		t.Fatalf("got %d conditions, want 1", len(conds))
	}
	checkTest(t, conds[0], []byte{0x41, 0x84, 0xA1})
	subs := conds[0].Subconditions
	if len(subs) != 1 {
		t.Fatalf("got %d subconditions, want 1", len(subs))
	}
	// The subcondition is the second occurrence and claims the register.
	checkTest(t, subs[0], []byte{0x41, 0x84, 0xA7, 0xA1})
}

func TestPendingStoreFlipsChainTerminator(t *testing.T) {
	conds := conditionsOf(t, `
		if Test_talk_1() and Test_talk_2() { return -1 }
		if Test_talk_1() and Test_talk_2() { return -1 }
	`)
	if len(conds) != 2 {
		t.Fatalf("got %d conditions, want 2", len(conds))
	}
	// No stores planned: both operands end the chain if false.
	checkTest(t, conds[0], []byte{0x41, 0x84, 0xB7, 0x42, 0x84, 0xB7, 0x98, 0xA1})
	// Both operands store. The first operand must continue rather than end
	// the chain while the second store is still unwritten.
	checkTest(t, conds[1], []byte{0x41, 0x84, 0xA7, 0xA6, 0x42, 0x84, 0xA8, 0xB7, 0x98, 0xA1})
}

func TestOrChainInConditions(t *testing.T) {
	conds := conditionsOf(t, `
		if Test_talk_1() or Test_talk_2() { return -1 }
	`)
	checkTest(t, conds[0], []byte{0x41, 0x84, 0xA6, 0x42, 0x84, 0xA6, 0x99, 0xA1})
}

func TestRegisterBudget(t *testing.T) {
	var b strings.Builder
	for round := 0; round < 2; round++ {
		for i := 1; i <= 9; i++ {
			fmt.Fprintf(&b, "\t\tif Test_talk_%d() { return -1 }\n", i)
		}
	}
	conds := conditionsOf(t, b.String())
	if len(conds) != 18 {
		t.Fatalf("got %d conditions, want 18", len(conds))
	}

	for i := 1; i <= 9; i++ {
		checkTest(t, conds[i-1], []byte{0x40 + byte(i), 0x84, 0xA1})
	}
	// Second occurrences of the first eight signatures claim slots 0..7.
	for i := 1; i <= 8; i++ {
		checkTest(t, conds[8+i], []byte{0x40 + byte(i), 0x84, 0xA7 + byte(i-1), 0xA1})
	}
	// The ninth signature finds no free register and re-encodes in full.
	checkTest(t, conds[17], []byte{0x49, 0x84, 0xA1})
}

func TestConstantsShareSignatures(t *testing.T) {
	tab := symtab.New()
	if err := tab.LoadReader("inline", strings.NewReader("[Flags]\nDoorOpen = 1001\n")); err != nil {
		t.Fatal(err)
	}
	src := `machine "m"

state A {
	"0"
	test {
		if Test_talk_2(Flags.DoorOpen) { return -1 }
		if Test_talk_2(1001) { return -1 }
		if Test_talk_2(Flags.DoorOpen) { return -1 }
	}
}
`
	m, err := CompileSource("cond.esl", src, schema.New("talk"), tab)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	conds := m.States[0].Conditions

	enc1001 := []byte{0x82, 0xE9, 0x03, 0x00, 0x00}
	want0 := append(append([]byte{0x42}, enc1001...), 0x85, 0xA1)
	checkTest(t, conds[0], want0)
	// A literal equal to the constant's value is the same signature.
	want1 := append(append([]byte{0x42}, enc1001...), 0x85, 0xA7, 0xA1)
	checkTest(t, conds[1], want1)
	checkTest(t, conds[2], []byte{0xAF, 0xA1})
}

func TestElseRewrites(t *testing.T) {
	conds := conditionsOf(t, `
		if Test_talk_1() { return B } else { return -1 }
	`)
	if len(conds) != 2 {
		t.Fatalf("got %d conditions, want 2", len(conds))
	}
	checkTest(t, conds[0], []byte{0x41, 0x84, 0xA1})
	if conds[0].NextState != 1 {
		t.Errorf("next state = %d, want 1", conds[0].NextState)
	}
	// The else arm becomes a trailing always-true conditional.
	checkTest(t, conds[1], []byte{0x41, 0xA1})
	if conds[1].NextState != -1 {
		t.Errorf("else next state = %d, want -1", conds[1].NextState)
	}
}

func TestNestedElseRewrites(t *testing.T) {
	conds := conditionsOf(t, `
		if Test_talk_1() {
			if Test_talk_2() { return B } else { return -1 }
			return -1
		}
	`)
	subs := conds[0].Subconditions
	if len(subs) != 2 {
		t.Fatalf("got %d subconditions, want 2", len(subs))
	}
	checkTest(t, subs[0], []byte{0x42, 0x84, 0xA1})
	checkTest(t, subs[1], []byte{0x41, 0xA1})
}

func TestPassCommands(t *testing.T) {
	conds := conditionsOf(t, `
		if Test_talk_1() {
			Command_talk_1_5(10)
			return -1
		}
	`)
	cmds := conds[0].PassCommands
	if len(cmds) != 1 {
		t.Fatalf("got %d pass commands, want 1", len(cmds))
	}
	if cmds[0].Bank != 1 || cmds[0].ID != 5 {
		t.Errorf("command = bank %d id %d, want bank 1 id 5", cmds[0].Bank, cmds[0].ID)
	}
	if len(cmds[0].Args) != 1 || !bytes.Equal(cmds[0].Args[0], []byte{0x4A, 0xA1}) {
		t.Errorf("command args = %v, want one argument 4A A1", cmds[0].Args)
	}
}

func TestConditionStructureErrors(t *testing.T) {
	tests := []struct {
		name  string
		block string
	}{
		{"else not last", `
			if Test_talk_1() { return -1 } else { return -1 }
			if Test_talk_2() { return -1 }
		`},
		{"command after subcondition", `
			if Test_talk_1() {
				if Test_talk_2() { return -1 }
				Command_talk_1_5()
				return -1
			}
		`},
		{"return not last", `
			if Test_talk_1() {
				return -1
				Command_talk_1_5()
			}
		`},
		{"bare command in test block", `
			Command_talk_1_5()
		`},
		{"return among conditionals", `
			if Test_talk_1() { return -1 }
			return -1
		`},
		{"next state must be a name or -1", `
			if Test_talk_1() { return 5 }
		`},
		{"negative next state other than -1", `
			if Test_talk_1() { return -2 }
		`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := conditionsErr(t, tt.block)
			if !IsKind(err, KindStructure) {
				t.Errorf("error %v, want structure kind", err)
			}
		})
	}
}

func TestUnknownNextState(t *testing.T) {
	err := conditionsErr(t, "if Test_talk_1() { return Elsewhere }")
	if !IsKind(err, KindUnresolved) {
		t.Errorf("error %v, want unresolved kind", err)
	}
}

func TestPlannerQueuesOncePerNode(t *testing.T) {
	// Mixed chains: the planner walks operands in compile order, so the
	// second occurrence inside the second node stores there, not later.
	conds := conditionsOf(t, `
		if Test_talk_1() or Test_talk_2() { return -1 }
		if Test_talk_2() and Test_talk_3() { return -1 }
		if Test_talk_3() { return -1 }
	`)
	checkTest(t, conds[0], []byte{0x41, 0x84, 0xA6, 0x42, 0x84, 0xA6, 0x99, 0xA1})
	// Operand one stores into slot 0; operand two is a first occurrence.
	checkTest(t, conds[1], []byte{0x42, 0x84, 0xA7, 0xB7, 0x43, 0x84, 0xB7, 0x98, 0xA1})
	// Third node: second occurrence of the third signature stores slot 1.
	checkTest(t, conds[2], []byte{0x43, 0x84, 0xA8, 0xA1})
}
