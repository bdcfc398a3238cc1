package mapping

import (
	"context"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/condapip/pkg/integrations"
)

// DefaultGrayskullURL is grayskull's PyPI to conda-forge name table.
const DefaultGrayskullURL = "https://raw.githubusercontent.com/conda/grayskull/main/src/grayskull/strategy/config.yaml"

type grayskullEntry struct {
	CondaForge string `yaml:"conda_forge"`
	ImportName string `yaml:"import_name"`
}

// Grayskull maps names using the table shipped with the grayskull recipe
// generator. The document is keyed by PyPI name:
//
//	build:
//	  conda_forge: python-build
//	  import_name: build
type Grayskull struct {
	remote *remoteTable
}

// NewGrayskull returns a source reading the table at location, which may be
// an http(s) URL fetched through client or a local path.
func NewGrayskull(client *integrations.Client, location string) *Grayskull {
	if location == "" {
		location = DefaultGrayskullURL
	}
	return &Grayskull{remote: &remoteTable{
		source: "grayskull",
		url:    location,
		client: client,
		parse:  parseGrayskull,
	}}
}

func parseGrayskull(data []byte) (table, error) {
	var doc map[string]grayskullEntry
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	t := make(table, len(doc))
	for pypi, e := range doc {
		t.add(Mapping{PyPIName: pypi, CondaName: e.CondaForge, ImportName: e.ImportName, Source: "grayskull"})
	}
	return t, nil
}

// Name implements Source.
func (g *Grayskull) Name() string { return "grayskull" }

// Lookup implements Source.
func (g *Grayskull) Lookup(ctx context.Context, name string) (Mapping, bool, error) {
	return g.remote.lookup(ctx, name)
}
