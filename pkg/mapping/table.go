package mapping

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/condapip/pkg/cache"
	cperrors "github.com/matzehuels/condapip/pkg/errors"
	"github.com/matzehuels/condapip/pkg/integrations"
	"github.com/matzehuels/condapip/pkg/spec"
)

// table indexes mappings by normalized PyPI name.
type table map[string]Mapping

// add keeps the first mapping seen for a name.
func (t table) add(m Mapping) {
	key := spec.Normalize(m.PyPIName)
	if key == "" || m.CondaName == "" {
		return
	}
	if _, dup := t[key]; !dup {
		t[key] = m
	}
}

func (t table) lookup(name string) (Mapping, bool) {
	m, ok := t[spec.Normalize(name)]
	return m, ok
}

// failureBackoff is how long a failed table load is remembered before the
// next lookup tries again.
const failureBackoff = 30 * time.Second

// remoteTable fetches and parses a mapping document and keeps it in memory.
// A loaded table is reloaded once the client's TTL has passed; if that
// reload fails the previous table keeps serving. A failed first load is
// remembered for failureBackoff, so an unreachable table costs one round of
// retries rather than one per package. Context cancellation is never
// remembered.
type remoteTable struct {
	source string
	url    string
	client *integrations.Client
	parse  func([]byte) (table, error)
	now    func() time.Time

	mu       sync.Mutex
	tbl      table
	loadedAt time.Time
	err      error
	failedAt time.Time
}

func (r *remoteTable) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// maxAge is how long a loaded table is served before it is reloaded.
func (r *remoteTable) maxAge() time.Duration {
	if r.client != nil && r.client.TTL() > 0 {
		return r.client.TTL()
	}
	return 24 * time.Hour
}

func (r *remoteTable) get(ctx context.Context) (table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()
	if r.err != nil && now.Sub(r.failedAt) < failureBackoff {
		if r.tbl != nil {
			return r.tbl, nil
		}
		return nil, r.err
	}
	if r.err == nil && r.tbl != nil && now.Sub(r.loadedAt) < r.maxAge() {
		return r.tbl, nil
	}

	tbl, err := r.load(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return r.tbl, err
	}
	if err != nil {
		r.err, r.failedAt = cperrors.Wrap(cperrors.ErrCodeMappingUnavailable, err, "%s table %s", r.source, r.url), now
		if r.tbl != nil {
			return r.tbl, nil
		}
		return nil, r.err
	}
	r.tbl, r.loadedAt, r.err = tbl, now, nil
	return r.tbl, nil
}

// load fetches and parses the document. A payload that does not parse is
// dropped from the shared cache so the next load fetches it again.
func (r *remoteTable) load(ctx context.Context) (table, error) {
	data, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	tbl, err := r.parse(data)
	if err != nil {
		if r.client != nil {
			if _, local := localPath(r.url); !local {
				_ = r.client.Invalidate(ctx, r.cacheKey())
			}
		}
		return nil, fmt.Errorf("parse: %w", err)
	}
	return tbl, nil
}

func (r *remoteTable) cacheKey() string {
	return cache.Key(r.source, cache.Hash([]byte(r.url))[:16])
}

// fetch reads local paths directly and everything else over HTTP through
// the cached client. A reload after the TTL bypasses the shared cache.
func (r *remoteTable) fetch(ctx context.Context) ([]byte, error) {
	if path, ok := localPath(r.url); ok {
		return os.ReadFile(path)
	}
	if r.client == nil {
		return nil, fmt.Errorf("%s: no HTTP client configured", r.source)
	}
	return r.client.CachedBytes(ctx, r.cacheKey(), r.tbl != nil, func() ([]byte, error) {
		return r.client.GetBytes(ctx, r.url)
	})
}

func (r *remoteTable) lookup(ctx context.Context, name string) (Mapping, bool, error) {
	t, err := r.get(ctx)
	if err != nil {
		return Mapping{}, false, err
	}
	m, ok := t.lookup(name)
	return m, ok, nil
}

func localPath(location string) (string, bool) {
	if p, ok := strings.CutPrefix(location, "file://"); ok {
		return p, true
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return "", false
	}
	return location, true
}
