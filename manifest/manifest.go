// Package manifest handles esdc.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// Manifest represents an esdc.toml project configuration.
type Manifest struct {
	Project   Project   `toml:"project"`
	Source    Source    `toml:"source"`
	Schemas   FileList  `toml:"schemas"`
	Constants FileList  `toml:"constants"`
	Output    Output    `toml:"output"`

	// Dir is the directory containing the esdc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Profile string `toml:"profile"`
}

// Source configures script file locations.
type Source struct {
	Dirs []string `toml:"dirs"`
}

// FileList names extra files to load, relative to the manifest directory.
type FileList struct {
	Files []string `toml:"files"`
}

// Output configures artifact output.
type Output struct {
	Dir   string `toml:"dir"`
	Cache string `toml:"cache"`
}

// Load parses an esdc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "esdc.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"scripts"}
	}
	if m.Output.Dir == "" {
		m.Output.Dir = "build"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find an esdc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "esdc.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// ScriptPaths returns the .esl files under the configured source directories,
// sorted. Missing directories are skipped.
func (m *Manifest) ScriptPaths() ([]string, error) {
	var paths []string
	for _, d := range m.SourceDirPaths() {
		matches, err := filepath.Glob(filepath.Join(d, "*.esl"))
		if err != nil {
			return nil, fmt.Errorf("cannot scan %s: %w", d, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

// SchemaPaths returns absolute paths for the configured schema overlay files.
func (m *Manifest) SchemaPaths() []string {
	return m.resolveFiles(m.Schemas.Files)
}

// ConstantPaths returns absolute paths for the configured constants files.
func (m *Manifest) ConstantPaths() []string {
	return m.resolveFiles(m.Constants.Files)
}

// OutputDir returns the absolute artifact output directory.
func (m *Manifest) OutputDir() string {
	return filepath.Join(m.Dir, m.Output.Dir)
}

// CachePath returns the absolute artifact cache path, or "" when the
// project does not configure a cache.
func (m *Manifest) CachePath() string {
	if m.Output.Cache == "" {
		return ""
	}
	return filepath.Join(m.Dir, m.Output.Cache)
}

func (m *Manifest) resolveFiles(files []string) []string {
	var paths []string
	for _, f := range files {
		paths = append(paths, filepath.Join(m.Dir, f))
	}
	return paths
}
