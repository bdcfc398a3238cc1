package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/condapip/pkg/observability"
)

// logHooks reports mapping, install, cache and HTTP events at debug level.
type logHooks struct {
	logger *log.Logger
}

func registerLogHooks(l *log.Logger) {
	h := &logHooks{logger: l.WithPrefix("trace")}
	observability.SetMappingHooks(h)
	observability.SetInstallHooks(h)
	observability.SetCacheHooks(h)
	observability.SetHTTPHooks(h)
}

func (h *logHooks) OnLookup(_ context.Context, source, name string, hit bool, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("lookup failed", "source", source, "name", name, "err", err)
		return
	}
	h.logger.Debug("lookup", "source", source, "name", name, "hit", hit, "took", d.Round(time.Microsecond))
}

func (h *logHooks) OnResolve(_ context.Context, name, condaName, source string) {
	if source == "" {
		h.logger.Debug("unmapped", "name", name)
		return
	}
	h.logger.Debug("resolved", "name", name, "conda", condaName, "source", source)
}

func (h *logHooks) OnInstallStart(_ context.Context, installer string, specs []string) {
	h.logger.Debug("install start", "installer", installer, "specs", specs)
}

func (h *logHooks) OnInstallComplete(_ context.Context, installer string, specs []string, d time.Duration, err error) {
	h.logger.Debug("install done", "installer", installer, "specs", len(specs), "took", d.Round(time.Millisecond), "err", err)
}

func (h *logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *logHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "host", host, "path", path, "status", status, "took", d.Round(time.Millisecond))
}

func (h *logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "host", host, "path", path, "err", err)
}

func (h *logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "key", keyType)
}

func (h *logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "key", keyType)
}

func (h *logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "key", keyType, "bytes", size)
}
