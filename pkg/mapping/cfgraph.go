package mapping

import (
	"context"
	"encoding/json"

	"github.com/matzehuels/condapip/pkg/integrations"
)

// DefaultCFGraphURL is the name mapping maintained by the conda-forge
// autotick bot.
const DefaultCFGraphURL = "https://raw.githubusercontent.com/regro/cf-graph-countyfair/master/mappings/pypi/name_mapping.json"

type cfGraphEntry struct {
	PyPIName      string `json:"pypi_name"`
	CondaName     string `json:"conda_name"`
	ImportName    string `json:"import_name"`
	MappingSource string `json:"mapping_source"`
}

// CFGraph maps names using regro's cf-graph name_mapping.json, a list of
//
//	{"pypi_name": "build", "conda_name": "python-build", "import_name": "build", "mapping_source": "regro-bot"}
//
// When a PyPI name appears more than once the first entry wins.
type CFGraph struct {
	remote *remoteTable
}

// NewCFGraph returns a source reading the mapping at location, which may be
// an http(s) URL fetched through client or a local path.
func NewCFGraph(client *integrations.Client, location string) *CFGraph {
	if location == "" {
		location = DefaultCFGraphURL
	}
	return &CFGraph{remote: &remoteTable{
		source: "cf-graph",
		url:    location,
		client: client,
		parse:  parseCFGraph,
	}}
}

func parseCFGraph(data []byte) (table, error) {
	var entries []cfGraphEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	t := make(table, len(entries))
	for _, e := range entries {
		t.add(Mapping{PyPIName: e.PyPIName, CondaName: e.CondaName, ImportName: e.ImportName, Source: "cf-graph"})
	}
	return t, nil
}

// Name implements Source.
func (c *CFGraph) Name() string { return "cf-graph" }

// Lookup implements Source.
func (c *CFGraph) Lookup(ctx context.Context, name string) (Mapping, bool, error) {
	return c.remote.lookup(ctx, name)
}
