package mapping

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/matzehuels/condapip/pkg/cache"
	cperrors "github.com/matzehuels/condapip/pkg/errors"
	"github.com/matzehuels/condapip/pkg/integrations"
	"github.com/matzehuels/condapip/pkg/integrations/anaconda"
)

// =============================================================================
// Fixtures
// =============================================================================

type fakeSource struct {
	name  string
	table map[string]string
	err   error
	calls []string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Lookup(_ context.Context, name string) (Mapping, bool, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return Mapping{}, false, f.err
	}
	conda, ok := f.table[name]
	if !ok {
		return Mapping{}, false, nil
	}
	return Mapping{PyPIName: name, CondaName: conda, Source: f.name}, true, nil
}

func testHTTPClient(t *testing.T) *integrations.Client {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return integrations.NewClient(fc, "mapping:", time.Hour, nil).WithRetry(2, time.Millisecond)
}

// serveFile serves a testdata file and counts requests.
func serveFile(t *testing.T, name string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// anacondaServer knows numpy, ib-insync and python-build on conda-forge.
func anacondaServer(t *testing.T) *httptest.Server {
	t.Helper()
	known := map[string]bool{
		"/package/conda-forge/numpy":        true,
		"/package/conda-forge/ib-insync":    true,
		"/package/conda-forge/pytest-cov":   true,
		"/package/conda-forge/python-build": true,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !known[r.URL.Path] {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"name":"x","latest_version":"1.0","versions":["1.0"]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testProbe(t *testing.T) *ChannelProbe {
	t.Helper()
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := anaconda.NewClient(fc, time.Hour).WithBaseURL(anacondaServer(t).URL)
	client.WithRetry(1, time.Millisecond)
	return NewChannelProbe(client, "conda-forge")
}

// backends returns one instance of every table-backed source.
func backends(t *testing.T) []Source {
	t.Helper()
	static, err := NewStatic("")
	if err != nil {
		t.Fatal(err)
	}
	var gh, ch atomic.Int32
	client := testHTTPClient(t)
	return []Source{
		static,
		NewGrayskull(client, serveFile(t, "grayskull.yaml", &gh).URL),
		NewCFGraph(client, serveFile(t, "name_mapping.json", &ch).URL),
	}
}

// =============================================================================
// Cross-backend properties
// =============================================================================

func TestBuildMapsToPythonBuildForEveryBackend(t *testing.T) {
	ctx := context.Background()
	for _, src := range backends(t) {
		t.Run(src.Name(), func(t *testing.T) {
			got, err := ToCondaSpec(ctx, "build", []Source{src})
			if err != nil {
				t.Fatal(err)
			}
			if got != "python-build" {
				t.Errorf("ToCondaSpec(build) = %q, want python-build", got)
			}

			got, _ = ToCondaSpec(ctx, "build>=1", []Source{src})
			if got != "python-build>=1" {
				t.Errorf("ToCondaSpec(build>=1) = %q, want python-build>=1", got)
			}
		})
	}
}

func TestGrayskullMapsIBInsync(t *testing.T) {
	var hits atomic.Int32
	src := NewGrayskull(testHTTPClient(t), serveFile(t, "grayskull.yaml", &hits).URL)

	got, err := ToCondaSpec(context.Background(), "ib_insync", []Source{src})
	if err != nil {
		t.Fatal(err)
	}
	if got != "ib-insync" {
		t.Errorf("ToCondaSpec(ib_insync) = %q, want ib-insync", got)
	}
}

func TestNumpyGoesNativeForEveryBackend(t *testing.T) {
	ctx := context.Background()
	probe := testProbe(t)
	for _, src := range backends(t) {
		r := NewResolver([]Source{src, probe})
		for _, raw := range []string{"numpy", "numpy=1.20"} {
			res, err := r.Resolve(ctx, raw)
			if err != nil {
				t.Fatal(err)
			}
			if !res.Native() {
				t.Errorf("%s: %s should resolve natively, got %s", src.Name(), raw, res.Channel)
			}
			if res.CondaSpec != raw {
				t.Errorf("%s: CondaSpec = %q, want %q", src.Name(), res.CondaSpec, raw)
			}
		}
	}
}

func TestUnmappedGoesThroughPyPI(t *testing.T) {
	ctx := context.Background()
	sources := append(backends(t), testProbe(t))

	res, err := NewResolver(sources).Resolve(ctx, "aaargh")
	if err != nil {
		t.Fatal(err)
	}
	want := &Resolution{
		Input:     "aaargh",
		PyPISpec:  "aaargh",
		CondaName: "aaargh",
		CondaSpec: "aaargh",
		Channel:   ChannelPyPI,
	}
	if diff := cmp.Diff(want, res, cmpopts.IgnoreFields(Resolution{}, "Spec")); diff != "" {
		t.Errorf("Resolve(aaargh) mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// Resolver
// =============================================================================

func TestResolverFirstHitWins(t *testing.T) {
	first := &fakeSource{name: "first", table: map[string]string{"build": "python-build"}}
	second := &fakeSource{name: "second", table: map[string]string{"build": "build"}}

	res, err := NewResolver([]Source{first, second}).Resolve(context.Background(), "build")
	if err != nil {
		t.Fatal(err)
	}
	if res.CondaName != "python-build" || res.Source != "first" {
		t.Errorf("got %s from %s, want python-build from first", res.CondaName, res.Source)
	}
	if len(second.calls) != 0 {
		t.Errorf("second source consulted after a hit: %v", second.calls)
	}
}

func TestResolverSourceErrorFallsThrough(t *testing.T) {
	broken := &fakeSource{name: "broken", err: errors.New("connection refused")}
	good := &fakeSource{name: "good", table: map[string]string{"tables": "pytables"}}

	res, err := NewResolver([]Source{broken, good}).Resolve(context.Background(), "tables>=3")
	if err != nil {
		t.Fatalf("source errors must not surface: %v", err)
	}
	if res.CondaSpec != "pytables>=3" || res.Source != "good" {
		t.Errorf("got %q from %q", res.CondaSpec, res.Source)
	}
	if len(broken.calls) != 1 {
		t.Errorf("broken source calls = %v", broken.calls)
	}
}

func TestResolverAllSourcesFail(t *testing.T) {
	broken := &fakeSource{name: "broken", err: errors.New("down")}

	res, err := NewResolver([]Source{broken}).Resolve(context.Background(), "requests")
	if err != nil {
		t.Fatal(err)
	}
	if res.Native() || res.CondaName != "requests" {
		t.Errorf("expected pypi fallback, got %+v", res)
	}
}

func TestResolverNormalizesBeforeLookup(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{name: "fake", table: map[string]string{"pytest-cov": "pytest-cov"}}
	r := NewResolver([]Source{src})

	for _, raw := range []string{"pytest-cov", "pytest_cov", "PyTest-Cov"} {
		res, err := r.Resolve(ctx, raw)
		if err != nil {
			t.Fatal(err)
		}
		if res.CondaName != "pytest-cov" || !res.Native() {
			t.Errorf("Resolve(%q) = %+v", raw, res)
		}
		if res.Input != raw {
			t.Errorf("Input = %q, want %q", res.Input, raw)
		}
	}
	for _, name := range src.calls {
		if name != "pytest-cov" {
			t.Errorf("lookup received unnormalized name %q", name)
		}
	}
}

func TestResolverKeepsPipSpec(t *testing.T) {
	src := &fakeSource{name: "fake", table: map[string]string{"requests": "requests"}}
	res, err := NewResolver([]Source{src}).Resolve(context.Background(), `requests[socks]>=2.8; python_version >= "3.8"`)
	if err != nil {
		t.Fatal(err)
	}
	if res.PyPISpec != `requests[socks]>=2.8; python_version >= "3.8"` {
		t.Errorf("PyPISpec = %q", res.PyPISpec)
	}
	if res.CondaSpec != "requests>=2.8" {
		t.Errorf("CondaSpec = %q", res.CondaSpec)
	}
}

func TestResolveInvalidSpec(t *testing.T) {
	src := &fakeSource{name: "fake"}
	_, err := NewResolver([]Source{src}).Resolve(context.Background(), "numpy>>1")
	if !cperrors.Is(err, cperrors.ErrCodeInvalidSpec) {
		t.Errorf("error = %v, want INVALID_SPEC", err)
	}
	if len(src.calls) != 0 {
		t.Error("no lookup should happen for an invalid specifier")
	}
}

func TestResolveAll(t *testing.T) {
	src := &fakeSource{name: "fake", table: map[string]string{"build": "python-build"}}
	r := NewResolver([]Source{src})

	got, err := r.ResolveAll(context.Background(), []string{"build", "aaargh"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].CondaName != "python-build" || got[1].Channel != ChannelPyPI {
		t.Errorf("ResolveAll = %+v", got)
	}

	src.calls = nil
	if _, err := r.ResolveAll(context.Background(), []string{"build", ""}); err == nil {
		t.Fatal("expected parse error")
	}
	if len(src.calls) != 0 {
		t.Errorf("parse errors must abort before lookups, got %v", src.calls)
	}
}

func TestResolverSources(t *testing.T) {
	r := NewResolver([]Source{&fakeSource{name: "a"}, &fakeSource{name: "b"}})
	if diff := cmp.Diff([]string{"a", "b"}, r.Sources()); diff != "" {
		t.Errorf("Sources() mismatch:\n%s", diff)
	}
}
