package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	cperrors "github.com/matzehuels/condapip/pkg/errors"
	"github.com/matzehuels/condapip/pkg/mapping"
)

type tableSource struct {
	name  string
	table map[string]string
}

func (s tableSource) Name() string { return s.name }

func (s tableSource) Lookup(_ context.Context, name string) (mapping.Mapping, bool, error) {
	conda, ok := s.table[name]
	return mapping.Mapping{PyPIName: name, CondaName: conda}, ok, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := mapping.NewRegistry()
	reg.Register("static", tableSource{"static", map[string]string{"build": "python-build"}})
	reg.Register("grayskull", tableSource{"grayskull", map[string]string{"build": "python-build", "ib-insync": "ib-insync"}})
	reg.Register("anaconda", tableSource{"anaconda", map[string]string{"numpy": "numpy"}})

	srv := httptest.NewServer(New(reg, []string{"static", "grayskull"}, []string{"anaconda"}, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func condaSpecs(r translateResponse) []string {
	var out []string
	for _, res := range r.Results {
		out = append(out, res.CondaSpec)
	}
	return out
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	body := decode[map[string]string](t, resp)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestBackends(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/v1/backends")
	if err != nil {
		t.Fatal(err)
	}
	body := decode[struct {
		Backends []backendInfo `json:"backends"`
		Priority []string      `json:"priority"`
	}](t, resp)

	want := []backendInfo{{"anaconda", 3}, {"grayskull", 2}, {"static", 1}}
	if diff := cmp.Diff(want, body.Backends); diff != "" {
		t.Errorf("backends mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"static", "grayskull", "anaconda"}, body.Priority); diff != "" {
		t.Errorf("priority mismatch:\n%s", diff)
	}
}

func TestTranslateQuery(t *testing.T) {
	srv := newTestServer(t)
	q := url.Values{"spec": {"build>=1", "ib_insync", "numpy=1.20", "aaargh"}}

	resp, err := http.Get(srv.URL + "/v1/translate?" + q.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[translateResponse](t, resp)

	if diff := cmp.Diff([]string{"python-build>=1", "ib-insync", "numpy=1.20", "aaargh"}, condaSpecs(body)); diff != "" {
		t.Errorf("conda specs mismatch:\n%s", diff)
	}
	if body.Results[1].Source != "grayskull" || body.Results[3].Channel != mapping.ChannelPyPI {
		t.Errorf("unexpected results: %+v %+v", body.Results[1], body.Results[3])
	}
}

func TestTranslateQuerySingleBackend(t *testing.T) {
	srv := newTestServer(t)
	q := url.Values{"spec": {"ib_insync", "numpy"}, "backend": {"static"}}

	resp, err := http.Get(srv.URL + "/v1/translate?" + q.Encode())
	if err != nil {
		t.Fatal(err)
	}
	body := decode[translateResponse](t, resp)

	if diff := cmp.Diff([]string{"static", "anaconda"}, body.Backends); diff != "" {
		t.Errorf("backend order mismatch:\n%s", diff)
	}
	if body.Results[0].Native() {
		t.Error("ib_insync is not in the static table")
	}
	if !body.Results[1].Native() || body.Results[1].Source != "anaconda" {
		t.Errorf("numpy should reach the fallback, got %+v", body.Results[1])
	}
}

func TestTranslateBody(t *testing.T) {
	srv := newTestServer(t)
	payload := `{"specs": ["build"], "backends": ["grayskull"]}`

	resp, err := http.Post(srv.URL+"/v1/translate", "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	body := decode[translateResponse](t, resp)
	if len(body.Results) != 1 || body.Results[0].CondaName != "python-build" || body.Results[0].Source != "grayskull" {
		t.Errorf("unexpected results: %+v", body.Results)
	}
}

func TestTranslateErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		do     func() (*http.Response, error)
		status int
		code   cperrors.Code
	}{
		{
			"no specs",
			func() (*http.Response, error) { return http.Get(srv.URL + "/v1/translate") },
			http.StatusBadRequest, cperrors.ErrCodeInvalidInput,
		},
		{
			"bad spec",
			func() (*http.Response, error) {
				return http.Get(srv.URL + "/v1/translate?" + url.Values{"spec": {"numpy>>1"}}.Encode())
			},
			http.StatusBadRequest, cperrors.ErrCodeInvalidSpec,
		},
		{
			"unknown backend",
			func() (*http.Response, error) {
				return http.Get(srv.URL + "/v1/translate?spec=build&backend=parselmouth")
			},
			http.StatusBadRequest, cperrors.ErrCodeInvalidBackend,
		},
		{
			"malformed body",
			func() (*http.Response, error) {
				return http.Post(srv.URL+"/v1/translate", "application/json", strings.NewReader(`{"specs": `))
			},
			http.StatusBadRequest, cperrors.ErrCodeInvalidInput,
		},
		{
			"unknown field",
			func() (*http.Response, error) {
				return http.Post(srv.URL+"/v1/translate", "application/json", strings.NewReader(`{"spec": ["x"]}`))
			},
			http.StatusBadRequest, cperrors.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tt.do()
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			body := decode[errorBody](t, resp)
			if body.Error.Code != tt.code {
				t.Errorf("code = %s, want %s", body.Error.Code, tt.code)
			}
		})
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestRequestIDsAreDistinct(t *testing.T) {
	srv := newTestServer(t)
	seen := map[string]bool{}
	for range 3 {
		resp, err := http.Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		id := resp.Header.Get("X-Request-ID")
		if id == "" || seen[id] {
			t.Errorf("request ID %q is empty or repeated", id)
		}
		seen[id] = true
	}
}
