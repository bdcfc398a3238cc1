package pypi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/condapip/pkg/cache"
	"github.com/matzehuels/condapip/pkg/integrations"
	"github.com/matzehuels/condapip/pkg/spec"
)

func aaarghResponse() apiResponse {
	return apiResponse{
		Info: apiInfo{
			Name:        "aaargh",
			Version:     "0.7.1",
			Summary:     "An astonishingly easy-to-use CLI argument parser",
			Classifiers: []string{"License :: OSI Approved :: BSD License"},
		},
		Releases: map[string][]apiFile{
			"0.7.1":  {{Filename: "aaargh-0.7.1.tar.gz"}},
			"0.10":   {{Filename: "aaargh-0.10.tar.gz", Yanked: true}},
			"0.3":    {{Filename: "aaargh-0.3.tar.gz"}},
			"0.7":    {{Filename: "aaargh-0.7.tar.gz"}},
			"0.4rc1": {{Filename: "aaargh-0.4rc1.tar.gz"}},
			"0.5":    {},
		},
	}
}

func TestClient_FetchPackage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/aaargh/json" {
			json.NewEncoder(w).Encode(aaarghResponse())
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	c := testClient(t, server.URL)

	info, err := c.FetchPackage(context.Background(), "AAARGH", true)
	if err != nil {
		t.Fatalf("FetchPackage failed: %v", err)
	}

	want := &PackageInfo{
		Name:     "aaargh",
		Version:  "0.7.1",
		Summary:  "An astonishingly easy-to-use CLI argument parser",
		License:  "BSD License",
		Releases: []string{"0.3", "0.4rc1", "0.7", "0.7.1"},
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("FetchPackage mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_FetchPackage_Cached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		json.NewEncoder(w).Encode(aaarghResponse())
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	ctx := context.Background()

	for range 3 {
		if _, err := c.FetchPackage(ctx, "aaargh", false); err != nil {
			t.Fatal(err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}

	if _, err := c.FetchPackage(ctx, "aaargh", true); err != nil {
		t.Fatal(err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("refresh should bypass cache, hits = %d", got)
	}
}

func TestClient_FetchPackage_NotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c := testClient(t, server.URL)

	_, err := c.FetchPackage(context.Background(), "missing-pkg", true)
	if err == nil {
		t.Fatal("expected error for missing package")
	}
	if !errors.Is(err, integrations.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPackageInfo_Latest(t *testing.T) {
	info := &PackageInfo{Releases: []string{"0.3", "0.7", "0.7.1", "1.0"}}

	tests := []struct {
		raw  string
		want string
	}{
		{"aaargh", "1.0"},
		{"aaargh<1", "0.7.1"},
		{"aaargh==0.7", "0.7"},
		{"aaargh=0.7", "0.7.1"},
		{"aaargh>2", ""},
	}
	for _, tt := range tests {
		if got := info.Latest(spec.MustParse(tt.raw)); got != tt.want {
			t.Errorf("Latest(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestExtractLicenseType(t *testing.T) {
	tests := []struct {
		license     string
		classifiers []string
		want        string
	}{
		{"", []string{"License :: OSI Approved :: MIT License"}, "MIT License"},
		{"Apache-2.0", nil, "Apache-2.0"},
		{"BSD 3-Clause\n\nCopyright (c) ...", nil, "BSD 3-Clause"},
		{"", nil, ""},
	}
	for _, tt := range tests {
		if got := extractLicenseType(tt.license, tt.classifiers); got != tt.want {
			t.Errorf("extractLicenseType(%q) = %q, want %q", tt.license, got, tt.want)
		}
	}
}

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(fc, time.Hour).WithBaseURL(serverURL)
	c.WithRetry(1, time.Millisecond)
	return c
}
