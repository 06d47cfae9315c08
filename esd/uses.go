package esd

import (
	"path/filepath"

	"github.com/ezstate/esdc/script"
	"github.com/ezstate/esdc/symtab"
)

// UsePaths resolves a script's use declarations to file paths, relative
// paths against dir.
func UsePaths(dir string, s *script.Script) []string {
	paths := make([]string, 0, len(s.Uses))
	for _, use := range s.Uses {
		path := use.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		paths = append(paths, path)
	}
	return paths
}

// LoadUses returns a symbol table extended by the constants files the script
// names in its use declarations, resolved relative to dir. The base table is
// left untouched and may be nil; a script without use declarations gets the
// base back unchanged. A file that cannot be loaded is an import error at
// the use declaration's position.
func LoadUses(base *symtab.Table, dir string, s *script.Script) (*symtab.Table, error) {
	if len(s.Uses) == 0 {
		return base, nil
	}
	tab := base.Clone()
	for i, path := range UsePaths(dir, s) {
		if err := tab.Load(path); err != nil {
			return nil, Errorf(KindImport, s.Uses[i].Span().Start, "cannot load constants: %v", err)
		}
	}
	return tab, nil
}
