// Package mapping translates PyPI package names into conda package names.
//
// A [Resolver] consults an ordered list of [Source] implementations and
// returns the first hit. Later sources are never consulted once one of them
// answers. When nothing maps a name, the normalized PyPI name is kept and the
// resolution is routed to the pip-interop channel.
//
// # Sources
//
//   - [Static]: a curated table compiled into the binary (TOML), optionally
//     extended by a user file
//   - [Grayskull]: grayskull's pypi-to-conda-forge YAML table
//   - [CFGraph]: regro's cf-graph name_mapping.json
//   - [ChannelProbe]: identity mapping confirmed against an anaconda.org channel
//   - [Mongo]: an organisation-curated MongoDB collection
//
// Sources that fail (network down, malformed table, database unreachable) are
// treated as having no mapping for the name. The failure is logged and the
// next source is tried.
//
// # Usage
//
//	reg := mapping.NewRegistry()
//	reg.Register("static", static)
//	reg.Register("grayskull", mapping.NewGrayskull(client, mapping.DefaultGrayskullURL))
//
//	sources, err := reg.Sources([]string{"static", "grayskull"})
//	r := mapping.NewResolver(sources, mapping.WithLogger(logger))
//	res, err := r.Resolve(ctx, "build>=1")
//	// res.CondaSpec == "python-build>=1", res.Channel == mapping.ChannelNative
package mapping

import (
	"context"

	"github.com/matzehuels/condapip/pkg/spec"
)

// Mapping is one PyPI-to-conda name correspondence.
type Mapping struct {
	PyPIName   string `json:"pypi_name" bson:"pypi_name"`
	CondaName  string `json:"conda_name" bson:"conda_name"`
	ImportName string `json:"import_name,omitempty" bson:"import_name,omitempty"`
	Source     string `json:"source,omitempty" bson:"source,omitempty"`
}

// Source looks up conda names for normalized PyPI names.
//
// Lookup reports a miss with (Mapping{}, false, nil). A non-nil error means
// the source itself is unavailable; callers treat it as a miss.
// Implementations must be safe for concurrent use.
type Source interface {
	Name() string
	Lookup(ctx context.Context, name string) (Mapping, bool, error)
}

// Channel says which installer handles a resolved package.
type Channel string

const (
	// ChannelNative packages are installed by conda.
	ChannelNative Channel = "native"
	// ChannelPyPI packages are installed by pip inside the prefix.
	ChannelPyPI Channel = "pypi"
)

// Resolution is the outcome of resolving one specifier.
type Resolution struct {
	Spec      *spec.Specifier `json:"-"`
	Input     string          `json:"input"`
	PyPISpec  string          `json:"pypi_spec"`
	CondaName string          `json:"conda_name"`
	CondaSpec string          `json:"conda_spec"`
	Channel   Channel         `json:"channel"`
	Source    string          `json:"source,omitempty"` // empty when unmapped
}

// Native reports whether conda installs this package.
func (r *Resolution) Native() bool { return r.Channel == ChannelNative }

// Name returns the normalized PyPI name.
func (r *Resolution) Name() string { return r.Spec.Normalized() }
