package anaconda

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/condapip/pkg/cache"
	"github.com/matzehuels/condapip/pkg/integrations"
)

func newTestServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		switch r.URL.Path {
		case "/package/conda-forge/numpy":
			json.NewEncoder(w).Encode(apiPackage{
				Name:          "numpy",
				LatestVersion: "2.1.3",
				Versions:      []string{"1.20.3", "2.1.3"},
				Summary:       "The fundamental package for scientific computing with Python.",
				License:       "BSD-3-Clause",
			})
		case "/package/conda-forge/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, url string) *Client {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(fc, time.Hour).WithBaseURL(url)
	c.WithRetry(2, time.Millisecond)
	return c
}

func TestFetchPackage(t *testing.T) {
	srv := newTestServer(t, nil)
	c := testClient(t, srv.URL)

	info, err := c.FetchPackage(context.Background(), "conda-forge", "numpy", false)
	if err != nil {
		t.Fatalf("FetchPackage: %v", err)
	}
	if info.Name != "numpy" || info.Channel != "conda-forge" || info.LatestVersion != "2.1.3" {
		t.Errorf("unexpected info: %+v", info)
	}
	if len(info.Versions) != 2 {
		t.Errorf("Versions = %v", info.Versions)
	}
}

func TestExists(t *testing.T) {
	var hits atomic.Int32
	srv := newTestServer(t, &hits)
	c := testClient(t, srv.URL)
	ctx := context.Background()

	ok, err := c.Exists(ctx, "conda-forge", "numpy")
	if err != nil || !ok {
		t.Fatalf("Exists(numpy) = %v, %v; want true, nil", ok, err)
	}
	ok, err = c.Exists(ctx, "conda-forge", "aaargh")
	if err != nil || ok {
		t.Fatalf("Exists(aaargh) = %v, %v; want false, nil", ok, err)
	}

	before := hits.Load()
	if ok, _ := c.Exists(ctx, "conda-forge", "numpy"); !ok {
		t.Error("cached lookup should still report numpy")
	}
	if hits.Load() != before {
		t.Error("second lookup should be served from cache")
	}
}

func TestExistsUpstreamError(t *testing.T) {
	srv := newTestServer(t, nil)
	c := testClient(t, srv.URL)

	_, err := c.Exists(context.Background(), "conda-forge", "broken")
	if !errors.Is(err, integrations.ErrNetwork) {
		t.Errorf("Exists(broken) error = %v, want ErrNetwork", err)
	}
}
