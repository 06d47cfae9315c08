// esdc - compiles state-machine scripts into EzState binary artifacts
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/ezstate/esdc/artifact"
	"github.com/ezstate/esdc/esd"
	"github.com/ezstate/esdc/manifest"
	"github.com/ezstate/esdc/schema"
	"github.com/ezstate/esdc/script"
	"github.com/ezstate/esdc/script/hash"
	"github.com/ezstate/esdc/server"
	"github.com/ezstate/esdc/symtab"

	_ "github.com/tliron/commonlog/simple"
)

// fileList collects a repeatable -flag value.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	var schemaFiles, constantsFiles fileList

	profile := flag.String("profile", "talk", "Built-in schema profile (talk or chr)")
	flag.Var(&schemaFiles, "schema", "Extra schema TOML file, merged over the profile (repeatable)")
	flag.Var(&constantsFiles, "constants", "Constants TOML file loaded before script use declarations (repeatable)")
	outDir := flag.String("o", "", "Output directory (default: next to each input)")
	cachePath := flag.String("cache", "", "Compile cache database (sqlite); disabled when empty")
	printHash := flag.Bool("hash", false, "Print each artifact's content hash")
	lspMode := flag.Bool("lsp", false, "Run the language server on stdio instead of compiling")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: esdc [options] file.esl...\n")
		fmt.Fprintf(os.Stderr, "       esdc [options]                  (build the project in esdc.toml)\n\n")
		fmt.Fprintf(os.Stderr, "Compiles state-machine scripts into EzState binary artifacts (.esdc).\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  esdc door.esl                        # compile with the talk profile\n")
		fmt.Fprintf(os.Stderr, "  esdc -profile chr patrol.esl         # character behavior schema\n")
		fmt.Fprintf(os.Stderr, "  esdc -schema mod.toml door.esl       # overlay extra command names\n")
		fmt.Fprintf(os.Stderr, "  esdc -cache build.db -o out *.esl    # cached batch build\n")
		fmt.Fprintf(os.Stderr, "  esdc -hash door.esl                  # print the artifact hash\n")
		fmt.Fprintf(os.Stderr, "  esdc                                 # build the enclosing project\n")
		fmt.Fprintf(os.Stderr, "  esdc -lsp                            # editor language server\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)
	log := commonlog.GetLogger("esdc")

	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	// Without file arguments, compile the enclosing esdc.toml project.
	// Explicit flags win over project settings.
	paths := flag.Args()
	if len(paths) == 0 && !*lspMode {
		proj, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "esdc: %v\n", err)
			os.Exit(1)
		}
		if proj == nil {
			flag.Usage()
			os.Exit(2)
		}
		if proj.Project.Profile != "" && !setFlags["profile"] {
			*profile = proj.Project.Profile
		}
		schemaFiles = fileList(append(proj.SchemaPaths(), schemaFiles...))
		constantsFiles = fileList(append(proj.ConstantPaths(), constantsFiles...))
		if !setFlags["o"] {
			*outDir = proj.OutputDir()
		}
		if !setFlags["cache"] {
			*cachePath = proj.CachePath()
		}
		paths, err = proj.ScriptPaths()
		if err != nil {
			fmt.Fprintf(os.Stderr, "esdc: %v\n", err)
			os.Exit(1)
		}
		if len(paths) == 0 {
			fmt.Fprintf(os.Stderr, "esdc: project %s: no .esl scripts in %s\n",
				proj.Project.Name, strings.Join(proj.Source.Dirs, ", "))
			os.Exit(1)
		}
		log.Infof("project %s: %d scripts", proj.Project.Name, len(paths))
	}

	sch, err := buildSchema(*profile, schemaFiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "esdc: %v\n", err)
		os.Exit(1)
	}

	consts, err := buildConstants(constantsFiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "esdc: %v\n", err)
		os.Exit(1)
	}

	if *lspMode {
		log.Infof("starting language server (profile %s)", sch.Type)
		if err := server.NewLSP(sch, consts).Run(); err != nil {
			fmt.Fprintf(os.Stderr, "esdc: language server: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var store *artifact.Store
	if *cachePath != "" {
		if err := os.MkdirAll(filepath.Dir(*cachePath), 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "esdc: %v\n", err)
			os.Exit(1)
		}
		store, err = artifact.OpenStore(*cachePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "esdc: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	b := builder{
		schema:     sch,
		consts:     consts,
		store:      store,
		fixedParts: fixedKeyParts(*profile, schemaFiles, constantsFiles),
		log:        log,
	}

	for _, path := range paths {
		sum, err := b.compileFile(path, *outDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "esdc: %s: %v\n", path, err)
			os.Exit(1)
		}
		if *printHash {
			fmt.Printf("%s  %s\n", sum, path)
		}
	}
}

// buildSchema layers overlay files over a built-in profile.
func buildSchema(profile string, overlays []string) (*schema.Schema, error) {
	sch, err := schema.Default(profile)
	if err != nil {
		return nil, err
	}
	for _, path := range overlays {
		overlay, err := schema.Load(path)
		if err != nil {
			return nil, err
		}
		if err := sch.Merge(overlay); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return sch, nil
}

// buildConstants loads the -constants files into one base table. Scripts may
// layer further files over it with use declarations.
func buildConstants(paths []string) (*symtab.Table, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	tab := symtab.New()
	for _, path := range paths {
		if err := tab.Load(path); err != nil {
			return nil, err
		}
	}
	return tab, nil
}

// fixedKeyParts hashes the schema and constants configuration into cache key
// parts shared by every input file. Unreadable files contribute their name
// only; the compile itself reports them properly.
func fixedKeyParts(profile string, schemaFiles, constantsFiles []string) [][]byte {
	parts := [][]byte{[]byte(profile)}
	for _, path := range append(append([]string{}, schemaFiles...), constantsFiles...) {
		data, err := os.ReadFile(path)
		if err != nil {
			data = []byte(path)
		}
		parts = append(parts, data)
	}
	return parts
}

// builder compiles script files against one fixed schema and constants
// configuration.
type builder struct {
	schema     *schema.Schema
	consts     *symtab.Table
	store      *artifact.Store
	fixedParts [][]byte
	log        commonlog.Logger
}

// compileFile compiles one script to its artifact file and returns the
// artifact hash. Cached builds are reused when their full input key matches.
func (b *builder) compileFile(path, outDir string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	prog, err := script.Parse(path, string(src))
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	key := b.cacheKey(prog, dir)
	if b.store != nil {
		entry, err := b.store.Get(key)
		if err == nil {
			b.log.Infof("%s: cached build %s", path, entry.BuildID)
			return b.writeArtifact(path, outDir, entry.Data)
		}
		if !errors.Is(err, artifact.ErrNotCached) {
			return "", err
		}
	}

	consts, err := esd.LoadUses(b.consts, dir, prog)
	if err != nil {
		return "", err
	}

	machine, err := esd.Compile(prog, b.schema, consts)
	if err != nil {
		return "", err
	}
	b.log.Infof("%s: compiled %d states", path, len(machine.States))

	data, err := artifact.Marshal(machine)
	if err != nil {
		return "", err
	}

	if b.store != nil {
		entry, err := b.store.Put(key, data)
		if err != nil {
			return "", err
		}
		b.log.Debugf("%s: cached as build %s", path, entry.BuildID)
	}

	return b.writeArtifact(path, outDir, data)
}

// cacheKey extends the fixed configuration parts with the script's content
// hash and its use-file contents, so editing any input invalidates the cached
// build. The content hash ignores formatting and comments, so cosmetic edits
// still reuse the cache.
func (b *builder) cacheKey(prog *script.Script, dir string) string {
	sum := hash.HashScript(prog)
	parts := append(append([][]byte{}, b.fixedParts...), sum[:])
	for _, usePath := range esd.UsePaths(dir, prog) {
		data, err := os.ReadFile(usePath)
		if err != nil {
			data = []byte(usePath)
		}
		parts = append(parts, data)
	}
	return artifact.CacheKey(parts...)
}

// writeArtifact writes the artifact next to the input (or into outDir) and
// returns its content hash.
func (b *builder) writeArtifact(path, outDir string, data []byte) (string, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".esdc"
	out := filepath.Join(filepath.Dir(path), name)
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return "", err
		}
		out = filepath.Join(outDir, name)
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		return "", err
	}
	b.log.Debugf("wrote %s (%d bytes)", out, len(data))
	return artifact.HashData(data), nil
}
