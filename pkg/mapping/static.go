package mapping

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"
)

//go:embed data/static.toml
var staticTOML []byte

type staticFile struct {
	Mappings map[string]string `toml:"mappings"`
}

// Static is a curated table of names whose conda package differs from
// the PyPI project, such as build -> python-build.
type Static struct {
	tbl table
}

// NewStatic loads the built-in table. If override is non-empty, entries
// from that TOML file replace built-in ones of the same name.
//
//	[mappings]
//	build = "python-build"
func NewStatic(override string) (*Static, error) {
	s := &Static{tbl: make(table)}

	var builtin staticFile
	if _, err := toml.NewDecoder(bytes.NewReader(staticTOML)).Decode(&builtin); err != nil {
		return nil, fmt.Errorf("static: built-in table: %w", err)
	}

	if override != "" {
		var user staticFile
		if _, err := toml.DecodeFile(override, &user); err != nil {
			return nil, fmt.Errorf("static: %s: %w", override, err)
		}
		s.load(user)
	}
	s.load(builtin)
	return s, nil
}

func (s *Static) load(f staticFile) {
	for pypi, conda := range f.Mappings {
		s.tbl.add(Mapping{PyPIName: pypi, CondaName: conda, Source: "static"})
	}
}

// Name implements Source.
func (s *Static) Name() string { return "static" }

// Lookup implements Source.
func (s *Static) Lookup(_ context.Context, name string) (Mapping, bool, error) {
	m, ok := s.tbl.lookup(name)
	return m, ok, nil
}

// Len returns the number of entries.
func (s *Static) Len() int { return len(s.tbl) }
