package integration_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ezstate/esdc/artifact"
	"github.com/ezstate/esdc/esd"
	"github.com/ezstate/esdc/manifest"
	"github.com/ezstate/esdc/schema"
	"github.com/ezstate/esdc/script"
	"github.com/ezstate/esdc/script/hash"
)

// ---------------------------------------------------------------------------
// Integration test helpers
// ---------------------------------------------------------------------------

// talkSchema returns the built-in talk profile.
func talkSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.Default("talk")
	if err != nil {
		t.Fatalf("loading talk profile: %v", err)
	}
	return sch
}

// mustParse parses a script source or fails the test.
func mustParse(t *testing.T, name, src string) *script.Script {
	t.Helper()
	prog, err := script.Parse(name, src)
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return prog
}

// compileTalk compiles a source string against the talk profile with no
// constants, replicating the plain cmd/esdc pipeline.
func compileTalk(t *testing.T, src string) *esd.StateMachine {
	t.Helper()
	m, err := esd.CompileSource("test.esl", src, talkSchema(t), nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return m
}

const greeterScript = `machine "gate guard"

state Wait {
	"0: watching for the player"
	test {
		if GetDistanceToPlayer(2.5) {
			return Greet
		}
	}
}

state Greet {
	"1"
	enter {
		AddTalkListData(1, text=10010, index=-1)
	}
	test {
		if IsTalkDone() {
			return -1
		} else {
			return Wait
		}
	}
	exit {
		ClearTalkProgressData()
	}
}
`

// ---------------------------------------------------------------------------
// 1. Full pipeline: parse, compile, inspect the machine
// ---------------------------------------------------------------------------

func TestIntegrationE2E_CompilePipeline(t *testing.T) {
	m := compileTalk(t, greeterScript)

	if m.Description != "gate guard" {
		t.Errorf("description = %q, want 'gate guard'", m.Description)
	}
	if len(m.States) != 2 {
		t.Fatalf("state count = %d, want 2", len(m.States))
	}

	wait := m.States[0]
	if wait == nil {
		t.Fatal("state 0 missing")
	}
	if wait.Description != "watching for the player" {
		t.Errorf("state 0 description = %q", wait.Description)
	}
	if len(wait.Conditions) != 1 {
		t.Fatalf("state 0 condition count = %d, want 1", len(wait.Conditions))
	}
	if wait.Conditions[0].NextState != 1 {
		t.Errorf("state 0 next state = %d, want 1", wait.Conditions[0].NextState)
	}

	// GetDistanceToPlayer is test id 29 (0x5D), its 2.5 argument encodes as
	// a marked little-endian double, one-argument calls close with 0x85 and
	// the test with 0xA1.
	wantTest := []byte{
		0x5D,
		0x81, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x04, 0x40,
		0x85,
		0xA1,
	}
	if !bytes.Equal(wait.Conditions[0].Test, wantTest) {
		t.Errorf("state 0 test bytes = % X, want % X", wait.Conditions[0].Test, wantTest)
	}

	greet := m.States[1]
	if greet == nil {
		t.Fatal("state 1 missing")
	}
	if greet.Description != "" {
		t.Errorf("state 1 description = %q, want empty", greet.Description)
	}

	// Keyword arguments compile positionally after the positionals.
	if len(greet.Enter) != 1 {
		t.Fatalf("state 1 enter count = %d, want 1", len(greet.Enter))
	}
	add := greet.Enter[0]
	if add.Bank != 1 || add.ID != 46 {
		t.Errorf("enter command = bank %d id %d, want bank 1 id 46", add.Bank, add.ID)
	}
	wantArgs := [][]byte{
		{0x41, 0xA1},                         // 1
		{0x82, 0x1A, 0x27, 0x00, 0x00, 0xA1}, // 10010
		{0x3F, 0xA1},                         // -1
	}
	if len(add.Args) != len(wantArgs) {
		t.Fatalf("enter arg count = %d, want %d", len(add.Args), len(wantArgs))
	}
	for i, want := range wantArgs {
		if !bytes.Equal(add.Args[i], want) {
			t.Errorf("enter arg %d = % X, want % X", i, add.Args[i], want)
		}
	}

	// The test block has an explicit condition and an always-true fallback.
	if len(greet.Conditions) != 2 {
		t.Fatalf("state 1 condition count = %d, want 2", len(greet.Conditions))
	}
	if greet.Conditions[0].NextState != -1 {
		t.Errorf("state 1 condition 0 next = %d, want -1", greet.Conditions[0].NextState)
	}
	if want := []byte{0x41, 0x84, 0xA1}; !bytes.Equal(greet.Conditions[0].Test, want) {
		t.Errorf("state 1 condition 0 test = % X, want % X", greet.Conditions[0].Test, want)
	}
	if greet.Conditions[1].NextState != 0 {
		t.Errorf("state 1 condition 1 next = %d, want 0", greet.Conditions[1].NextState)
	}
	if want := []byte{0x41, 0xA1}; !bytes.Equal(greet.Conditions[1].Test, want) {
		t.Errorf("state 1 condition 1 test = % X, want % X", greet.Conditions[1].Test, want)
	}

	if len(greet.Exit) != 1 || greet.Exit[0].Bank != 1 || greet.Exit[0].ID != 5 {
		t.Errorf("state 1 exit = %+v, want ClearTalkProgressData (bank 1 id 5)", greet.Exit)
	}
}

// ---------------------------------------------------------------------------
// 2. Wire format: marshal, unmarshal, remarshal
// ---------------------------------------------------------------------------

func TestIntegrationE2E_WireRoundTrip(t *testing.T) {
	m := compileTalk(t, greeterScript)

	data, err := artifact.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	back, err := artifact.Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.Description != m.Description {
		t.Errorf("description = %q, want %q", back.Description, m.Description)
	}
	if len(back.States) != len(m.States) {
		t.Fatalf("state count = %d, want %d", len(back.States), len(m.States))
	}
	for index, state := range m.States {
		got := back.States[index]
		if got == nil {
			t.Fatalf("state %d missing after round trip", index)
		}
		if got.Description != state.Description {
			t.Errorf("state %d description = %q, want %q", index, got.Description, state.Description)
		}
		if len(got.Conditions) != len(state.Conditions) {
			t.Fatalf("state %d condition count = %d, want %d", index, len(got.Conditions), len(state.Conditions))
		}
		for i, cond := range state.Conditions {
			if got.Conditions[i].NextState != cond.NextState {
				t.Errorf("state %d condition %d next = %d, want %d",
					index, i, got.Conditions[i].NextState, cond.NextState)
			}
			if !bytes.Equal(got.Conditions[i].Test, cond.Test) {
				t.Errorf("state %d condition %d test bytes changed", index, i)
			}
		}
	}

	// The canonical encoding makes remarshaling byte-identical.
	again, err := artifact.Marshal(back)
	if err != nil {
		t.Fatalf("remarshal: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Error("remarshaled artifact differs from the original encoding")
	}
}

// ---------------------------------------------------------------------------
// 3. Artifact hashes: stable across builds, different across scripts
// ---------------------------------------------------------------------------

func TestIntegrationE2E_ArtifactHash(t *testing.T) {
	h1, err := artifact.Hash(compileTalk(t, greeterScript))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := artifact.Hash(compileTalk(t, greeterScript))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Errorf("recompiling the same source changed the artifact hash: %s vs %s", h1, h2)
	}

	other := compileTalk(t, `state A { "0" test { return -1 } }`)
	h3, err := artifact.Hash(other)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h3 == h1 {
		t.Error("different scripts produced the same artifact hash")
	}
}

// ---------------------------------------------------------------------------
// 4. Cache store: miss, put, hit, delete
// ---------------------------------------------------------------------------

func TestIntegrationE2E_CacheStore(t *testing.T) {
	store, err := artifact.OpenStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	m := compileTalk(t, greeterScript)
	data, err := artifact.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	key := artifact.CacheKey([]byte("talk"), []byte(greeterScript))

	if _, err := store.Get(key); !errors.Is(err, artifact.ErrNotCached) {
		t.Fatalf("empty cache Get = %v, want ErrNotCached", err)
	}

	entry, err := store.Put(key, data)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if entry.BuildID == "" {
		t.Error("put assigned no build id")
	}

	got, err := store.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got.Data, data) {
		t.Error("cached artifact bytes differ from the stored build")
	}
	if got.BuildID != entry.BuildID {
		t.Errorf("build id = %s, want %s", got.BuildID, entry.BuildID)
	}

	// The recovered bytes are a loadable artifact.
	back, err := artifact.Unmarshal(got.Data)
	if err != nil {
		t.Fatalf("unmarshal cached artifact: %v", err)
	}
	if len(back.States) != 2 {
		t.Errorf("cached artifact has %d states, want 2", len(back.States))
	}

	if err := store.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(key); !errors.Is(err, artifact.ErrNotCached) {
		t.Fatalf("Get after delete = %v, want ErrNotCached", err)
	}
}

// ---------------------------------------------------------------------------
// 5. Constants: use files compile to the same bytes as inline literals
// ---------------------------------------------------------------------------

func TestIntegrationE2E_UseFileConstants(t *testing.T) {
	dir := t.TempDir()
	flags := `[Flags]
GateOpen = 300

[Text]
Hello = 10010
`
	if err := os.WriteFile(filepath.Join(dir, "flags.toml"), []byte(flags), 0644); err != nil {
		t.Fatal(err)
	}

	withConsts := `use "flags.toml"

state Wait {
	"0"
	test {
		if GetEventState(Flags.GateOpen) == 1 {
			return Greet
		}
	}
}

state Greet {
	"1"
	enter {
		AddTalkListData(1, text=Text.Hello, index=-1)
	}
	test {
		return -1
	}
}
`
	inline := `state Wait {
	"0"
	test {
		if GetEventState(300) == 1 {
			return Greet
		}
	}
}

state Greet {
	"1"
	enter {
		AddTalkListData(1, text=10010, index=-1)
	}
	test {
		return -1
	}
}
`

	sch := talkSchema(t)
	prog := mustParse(t, "wait.esl", withConsts)

	consts, err := esd.LoadUses(nil, dir, prog)
	if err != nil {
		t.Fatalf("loading use files: %v", err)
	}
	if v, ok := consts.Lookup("Flags", "GateOpen"); !ok || v != int64(300) {
		t.Errorf("Flags.GateOpen = %v (%v), want 300", v, ok)
	}

	mA, err := esd.Compile(prog, sch, consts)
	if err != nil {
		t.Fatalf("compile with constants: %v", err)
	}
	mB, err := esd.CompileSource("inline.esl", inline, sch, nil)
	if err != nil {
		t.Fatalf("compile inline: %v", err)
	}

	dataA, err := artifact.Marshal(mA)
	if err != nil {
		t.Fatal(err)
	}
	dataB, err := artifact.Marshal(mB)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dataA, dataB) {
		t.Error("constants and inline literals compiled to different artifacts")
	}
}

// ---------------------------------------------------------------------------
// 6. Schema overlays: extra names merge over the built-in profile
// ---------------------------------------------------------------------------

func TestIntegrationE2E_SchemaOverlay(t *testing.T) {
	src := `state Wait {
	"0"
	ongoing {
		RingGateBell(2)
	}
	test {
		if IsGateBellRung() {
			return -1
		}
	}
}
`

	// The talk profile alone does not know these names.
	_, err := esd.CompileSource("bell.esl", src, talkSchema(t), nil)
	if !esd.IsKind(err, esd.KindUnresolved) {
		t.Fatalf("compile without overlay = %v, want unresolved-name error", err)
	}

	overlayPath := filepath.Join(t.TempDir(), "bell.toml")
	overlay := `[commands]
RingGateBell = { bank = 1, id = 99 }

[tests]
IsGateBellRung = 77
`
	if err := os.WriteFile(overlayPath, []byte(overlay), 0644); err != nil {
		t.Fatal(err)
	}

	sch := talkSchema(t)
	ov, err := schema.Load(overlayPath)
	if err != nil {
		t.Fatalf("loading overlay: %v", err)
	}
	if err := sch.Merge(ov); err != nil {
		t.Fatalf("merging overlay: %v", err)
	}

	m, err := esd.CompileSource("bell.esl", src, sch, nil)
	if err != nil {
		t.Fatalf("compile with overlay: %v", err)
	}

	wait := m.States[0]
	if len(wait.Ongoing) != 1 || wait.Ongoing[0].Bank != 1 || wait.Ongoing[0].ID != 99 {
		t.Errorf("ongoing command = %+v, want bank 1 id 99", wait.Ongoing)
	}

	// Test id 77 is out of single-byte range and encodes long-form.
	wantTest := []byte{0x82, 0x4D, 0x00, 0x00, 0x00, 0x84, 0xA1}
	if len(wait.Conditions) != 1 || !bytes.Equal(wait.Conditions[0].Test, wantTest) {
		t.Errorf("overlay test bytes = % X, want % X", wait.Conditions[0].Test, wantTest)
	}
}

// ---------------------------------------------------------------------------
// 7. Project build: esdc.toml drives a multi-script cached build
// ---------------------------------------------------------------------------

func TestIntegrationE2E_ProjectBuild(t *testing.T) {
	root := t.TempDir()
	writeFile := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	writeFile("esdc.toml", `[project]
name = "gatehouse"
profile = "talk"

[output]
dir = "build"
cache = "build/cache.db"
`)
	writeFile("scripts/door.esl", greeterScript)
	writeFile("scripts/lever.esl", `state Idle {
	"0"
	test {
		if GetEventState(50) == 6 {
			return Pulled
		}
	}
}

state Pulled {
	"1"
	enter {
		SetWorkValue(1)
	}
	test {
		return -1
	}
}
`)

	// The manifest is found from anywhere inside the project.
	proj, err := manifest.FindAndLoad(filepath.Join(root, "scripts"))
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if proj == nil {
		t.Fatal("FindAndLoad found no project")
	}
	if proj.Project.Name != "gatehouse" {
		t.Errorf("project name = %q, want gatehouse", proj.Project.Name)
	}

	paths, err := proj.ScriptPaths()
	if err != nil {
		t.Fatalf("ScriptPaths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("script count = %d, want 2: %v", len(paths), paths)
	}

	sch, err := schema.Default(proj.Project.Profile)
	if err != nil {
		t.Fatalf("profile %q: %v", proj.Project.Profile, err)
	}

	if err := os.MkdirAll(proj.OutputDir(), 0755); err != nil {
		t.Fatal(err)
	}
	store, err := artifact.OpenStore(proj.CachePath())
	if err != nil {
		t.Fatalf("open project cache: %v", err)
	}
	defer store.Close()

	// Build every project script the way cmd/esdc does, caching as we go.
	build := func(path string) (string, []byte) {
		t.Helper()
		src, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		prog := mustParse(t, path, string(src))
		sum := hash.HashScript(prog)
		key := artifact.CacheKey([]byte(proj.Project.Profile), sum[:])

		if entry, err := store.Get(key); err == nil {
			return key, entry.Data
		} else if !errors.Is(err, artifact.ErrNotCached) {
			t.Fatalf("cache get: %v", err)
		}

		consts, err := esd.LoadUses(nil, filepath.Dir(path), prog)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		machine, err := esd.Compile(prog, sch, consts)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		data, err := artifact.Marshal(machine)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		if _, err := store.Put(key, data); err != nil {
			t.Fatalf("cache put: %v", err)
		}
		return key, data
	}

	built := map[string][]byte{}
	for _, path := range paths {
		_, data := build(path)
		name := filepath.Base(path)
		out := filepath.Join(proj.OutputDir(), name[:len(name)-len(".esl")]+".esdc")
		if err := os.WriteFile(out, data, 0644); err != nil {
			t.Fatal(err)
		}
		built[path] = data
	}

	for _, name := range []string{"door.esdc", "lever.esdc"} {
		if _, err := os.Stat(filepath.Join(proj.OutputDir(), name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	// Second build round: every script hits the cache with identical bytes.
	for _, path := range paths {
		_, data := build(path)
		if !bytes.Equal(data, built[path]) {
			t.Errorf("%s: cached rebuild returned different bytes", path)
		}
	}
}

// ---------------------------------------------------------------------------
// 8. Cache keys: formatting-insensitive through the content hash
// ---------------------------------------------------------------------------

func TestIntegrationE2E_ContentHashKeys(t *testing.T) {
	tight := `state A { "0" test { if IsTalkDone() { return -1 } } }`
	loose := `# reformatted
state A {
	"0"
	test {
		if IsTalkDone() {
			return -1
		}
	}
}
`
	changed := `state A { "0" test { if IsTalkDone() { return 0 } } }`

	key := func(src string) string {
		sum := hash.HashScript(mustParse(t, "a.esl", src))
		return artifact.CacheKey([]byte("talk"), sum[:])
	}

	if key(tight) != key(loose) {
		t.Error("reformatting changed the cache key")
	}
	if key(tight) == key(changed) {
		t.Error("semantic change kept the same cache key")
	}
}
