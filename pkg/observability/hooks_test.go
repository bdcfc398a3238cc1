package observability

import (
	"context"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	// Mapping hooks
	m := NoopMappingHooks{}
	m.OnLookup(ctx, "grayskull", "build", true, time.Millisecond, nil)
	m.OnResolve(ctx, "build", "python-build", "grayskull")

	// Install hooks
	i := NoopInstallHooks{}
	i.OnInstallStart(ctx, "conda", []string{"numpy"})
	i.OnInstallComplete(ctx, "conda", []string{"numpy"}, time.Second, nil)

	// Cache hooks
	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "grayskull")
	c.OnCacheMiss(ctx, "cf-graph")
	c.OnCacheSet(ctx, "anaconda", 1024)

	// HTTP hooks
	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "api.anaconda.org", "/package/conda-forge/numpy")
	h.OnResponse(ctx, "GET", "api.anaconda.org", "/package/conda-forge/numpy", 200, time.Second)
	h.OnError(ctx, "GET", "api.anaconda.org", "/package/conda-forge/numpy", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Mapping().(NoopMappingHooks); !ok {
		t.Error("Mapping() should return NoopMappingHooks by default")
	}
	if _, ok := Install().(NoopInstallHooks); !ok {
		t.Error("Install() should return NoopInstallHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customMapping := &testMappingHooks{}
	SetMappingHooks(customMapping)
	if Mapping() != customMapping {
		t.Error("SetMappingHooks should set custom hooks")
	}

	customInstall := &testInstallHooks{}
	SetInstallHooks(customInstall)
	if Install() != customInstall {
		t.Error("SetInstallHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Mapping().(NoopMappingHooks); !ok {
		t.Error("Reset() should restore NoopMappingHooks")
	}
	if _, ok := Install().(NoopInstallHooks); !ok {
		t.Error("Reset() should restore NoopInstallHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()

	custom := &testMappingHooks{}
	SetMappingHooks(custom)
	SetMappingHooks(nil)

	if Mapping() != custom {
		t.Error("SetMappingHooks(nil) should be ignored")
	}

	Reset()
}

type testMappingHooks struct{ NoopMappingHooks }
type testInstallHooks struct{ NoopInstallHooks }
type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
