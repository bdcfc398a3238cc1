// Package integrations provides HTTP clients for the upstream services
// condapip talks to.
//
// # Overview
//
// Name-mapping tables (grayskull, cf-graph) are plain files served over
// HTTPS; channel probes hit the anaconda.org API; pip-channel plan checks
// hit PyPI. All of them go through the shared [Client]:
//
//	c := integrations.NewClient(store, "mapping:", 24*time.Hour, nil)
//	data, err := c.CachedBytes(ctx, "grayskull", false, func() ([]byte, error) {
//	    return c.GetBytes(ctx, url)
//	})
//
// Clients handle:
//   - Response caching through [cache.Cache] with a per-client TTL
//   - Retry with backoff for network errors, 429 and 5xx responses
//   - Mapping 404 to [ErrNotFound]
//
// Registry-specific clients live in subpackages:
//
//   - [pypi]: Python Package Index JSON API
//   - [anaconda]: anaconda.org package API
//
// [pypi]: github.com/matzehuels/condapip/pkg/integrations/pypi
// [anaconda]: github.com/matzehuels/condapip/pkg/integrations/anaconda
// [cache.Cache]: github.com/matzehuels/condapip/pkg/cache.Cache
package integrations
