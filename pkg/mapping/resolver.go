package mapping

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/condapip/pkg/observability"
	"github.com/matzehuels/condapip/pkg/spec"
)

// Resolver resolves specifiers against an ordered list of sources.
// A Resolver holds no mutable state and is safe for concurrent use.
type Resolver struct {
	sources []Source
	logger  *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for source warnings and debug traces.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver returns a Resolver that consults sources in order.
func NewResolver(sources []Source, opts ...Option) *Resolver {
	r := &Resolver{
		sources: append([]Source(nil), sources...),
		logger:  log.NewWithOptions(io.Discard, log.Options{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sources returns the names of the configured sources in priority order.
func (r *Resolver) Sources() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// Resolve parses raw and maps its name to a conda package.
// Only parse errors are returned; source failures count as misses.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Resolution, error) {
	s, err := spec.Parse(raw)
	if err != nil {
		return nil, err
	}
	res := r.ResolveSpec(ctx, s)
	res.Input = raw
	return res, nil
}

// ResolveSpec maps an already parsed specifier.
func (r *Resolver) ResolveSpec(ctx context.Context, s *spec.Specifier) *Resolution {
	name := s.Normalized()
	res := &Resolution{
		Spec:      s,
		Input:     s.String(),
		PyPISpec:  s.String(),
		CondaName: name,
		Channel:   ChannelPyPI,
	}

	if m, src, ok := r.lookup(ctx, name); ok {
		res.CondaName = m.CondaName
		res.Channel = ChannelNative
		res.Source = src
	}
	res.CondaSpec = s.CondaString(res.CondaName)

	if res.Native() && (s.HasExtras() || s.Marker != "" || s.URL != "") {
		r.logger.Debug("dropping pip-only parts of specifier", "spec", res.PyPISpec, "conda", res.CondaSpec)
	}
	observability.Mapping().OnResolve(ctx, name, res.CondaName, res.Source)
	return res
}

// lookup walks the sources and stops at the first hit.
func (r *Resolver) lookup(ctx context.Context, name string) (Mapping, string, bool) {
	hooks := observability.Mapping()
	for _, src := range r.sources {
		start := time.Now()
		m, ok, err := src.Lookup(ctx, name)
		hooks.OnLookup(ctx, src.Name(), name, ok && err == nil, time.Since(start), err)

		if err != nil {
			r.logger.Warn("mapping source unavailable", "source", src.Name(), "name", name, "err", err)
			continue
		}
		if !ok || m.CondaName == "" {
			r.logger.Debug("no mapping", "source", src.Name(), "name", name)
			continue
		}
		r.logger.Debug("mapped", "source", src.Name(), "name", name, "conda", m.CondaName)
		return m, src.Name(), true
	}
	return Mapping{}, "", false
}

// ResolveAll resolves every specifier, failing on the first parse error
// before any lookup is made.
func (r *Resolver) ResolveAll(ctx context.Context, raws []string) ([]*Resolution, error) {
	specs := make([]*spec.Specifier, len(raws))
	for i, raw := range raws {
		s, err := spec.Parse(raw)
		if err != nil {
			return nil, err
		}
		specs[i] = s
	}

	out := make([]*Resolution, len(specs))
	for i, s := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = r.ResolveSpec(ctx, s)
		out[i].Input = raws[i]
	}
	return out, nil
}

// ToCondaSpec translates a single PyPI specifier into a conda match spec
// using sources in priority order. Unmapped names keep their normalized
// PyPI name.
//
//	ToCondaSpec(ctx, "build", sources)    // "python-build"
//	ToCondaSpec(ctx, "ib_insync", sources) // "ib-insync"
func ToCondaSpec(ctx context.Context, raw string, sources []Source) (string, error) {
	res, err := NewResolver(sources).Resolve(ctx, raw)
	if err != nil {
		return "", err
	}
	return res.CondaSpec, nil
}
