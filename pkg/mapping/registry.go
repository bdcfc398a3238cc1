package mapping

import (
	"errors"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"

	cperrors "github.com/matzehuels/condapip/pkg/errors"
)

// Registry holds the named sources available to a process.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds src under name, replacing any previous source of that name.
func (r *Registry) Register(name string, src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = src
}

// Get returns the source registered under name.
func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	return s, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Sources returns the sources for names in the given order. Duplicate names
// are kept once, at their first position. An unknown name yields an
// [cperrors.ErrCodeInvalidBackend] error listing the valid choices.
func (r *Registry) Sources(names []string) ([]Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(names))
	out := make([]Source, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		s, ok := r.sources[name]
		if !ok {
			return nil, cperrors.New(cperrors.ErrCodeInvalidBackend,
				"unknown backend %q (available: %s)", name, strings.Join(r.namesLocked(), ", "))
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases sources that hold connections (e.g. [Mongo]).
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, s := range r.sources {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Priority builds a backend list: primary names first, then fallbacks not
// already present.
func Priority(primary, fallbacks []string) []string {
	out := append([]string(nil), primary...)
	for _, f := range fallbacks {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}
