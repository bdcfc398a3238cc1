package pypi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/matzehuels/condapip/pkg/cache"
	"github.com/matzehuels/condapip/pkg/integrations"
	"github.com/matzehuels/condapip/pkg/spec"
)

// DefaultBaseURL is the PyPI JSON API root.
const DefaultBaseURL = "https://pypi.org/pypi"

// PackageInfo holds metadata for a Python package from PyPI.
//
// Package names are normalized following PEP 503 (lowercase, separators
// folded to hyphens). Releases lists every published version that has at
// least one non-yanked file, sorted oldest first by PEP 440 ordering.
type PackageInfo struct {
	Name     string   // Normalized package name (e.g., "aaargh")
	Version  string   // Latest version (e.g., "0.7.1")
	Summary  string   // Short package description (may be empty)
	License  string   // License name or expression (may be empty)
	Releases []string // Installable versions, oldest first
}

// Latest returns the newest release satisfying s, or "" if none does.
func (p *PackageInfo) Latest(s *spec.Specifier) string {
	for i := len(p.Releases) - 1; i >= 0; i-- {
		if s.Satisfied(p.Releases[i]) {
			return p.Releases[i]
		}
	}
	return ""
}

// Client provides access to the PyPI JSON API. It is used to confirm that
// packages routed through pip-interop actually exist upstream.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a PyPI client with the given cache backend.
// A nil backend disables caching.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	return &Client{
		Client:  integrations.NewClient(backend, "pypi:", cacheTTL, nil),
		baseURL: DefaultBaseURL,
	}
}

// WithBaseURL points the client at a PyPI-compatible mirror.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = strings.TrimSuffix(url, "/")
	return c
}

// FetchPackage retrieves metadata for a Python package from PyPI.
//
// The pkg parameter is normalized automatically. If refresh is true, the
// cache is bypassed.
//
// Returns:
//   - [integrations.ErrNotFound] if the package doesn't exist
//   - [integrations.ErrNetwork] for HTTP failures (timeout, 5xx, etc.)
//   - Other errors for JSON decoding failures
func (c *Client) FetchPackage(ctx context.Context, pkg string, refresh bool) (*PackageInfo, error) {
	pkg = spec.Normalize(pkg)

	var info PackageInfo
	err := c.Cached(ctx, pkg, refresh, &info, func() error {
		return c.fetch(ctx, pkg, &info)
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) fetch(ctx context.Context, pkg string, info *PackageInfo) error {
	var data apiResponse
	if err := c.Get(ctx, fmt.Sprintf("%s/%s/json", c.baseURL, integrations.URLEncode(pkg)), &data); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			return fmt.Errorf("%w: pypi package %s", err, pkg)
		}
		return err
	}

	*info = PackageInfo{
		Name:     spec.Normalize(data.Info.Name),
		Version:  data.Info.Version,
		Summary:  data.Info.Summary,
		License:  extractLicenseType(data.Info.License, data.Info.Classifiers),
		Releases: extractReleases(data.Releases),
	}
	return nil
}

// extractReleases keeps versions with at least one non-yanked file and
// sorts them by PEP 440 precedence. Unparseable versions sort first.
func extractReleases(releases map[string][]apiFile) []string {
	out := make([]string, 0, len(releases))
	for v, files := range releases {
		for _, f := range files {
			if !f.Yanked {
				out = append(out, v)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := pep440.Parse(out[i])
		b, errB := pep440.Parse(out[j])
		switch {
		case errA != nil && errB != nil:
			return out[i] < out[j]
		case errA != nil:
			return true
		case errB != nil:
			return false
		}
		return a.LessThan(b)
	})
	return out
}

type apiResponse struct {
	Info     apiInfo              `json:"info"`
	Releases map[string][]apiFile `json:"releases"`
}

type apiInfo struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Summary     string   `json:"summary"`
	License     string   `json:"license"`
	Classifiers []string `json:"classifiers"`
}

type apiFile struct {
	Filename string `json:"filename"`
	Yanked   bool   `json:"yanked"`
}

// extractLicenseType extracts a short license identifier from PyPI data.
// It prefers the classifier (e.g., "License :: OSI Approved :: MIT License" -> "MIT License")
// and falls back to the license field if it's short enough.
func extractLicenseType(license string, classifiers []string) string {
	for _, c := range classifiers {
		if strings.HasPrefix(c, "License :: ") {
			parts := strings.Split(c, " :: ")
			if len(parts) >= 3 {
				return parts[len(parts)-1]
			}
		}
	}

	if license != "" && len(license) < 100 && !strings.Contains(license, "\n") {
		return strings.TrimSpace(license)
	}

	if license != "" {
		firstLine := strings.TrimSpace(strings.Split(license, "\n")[0])
		if len(firstLine) < 50 {
			return firstLine
		}
	}

	return ""
}
