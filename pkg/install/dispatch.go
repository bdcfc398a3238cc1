package install

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/condapip/pkg/observability"
)

// Dispatcher executes plans.
type Dispatcher struct {
	Conda  Installer
	Pip    Installer
	Logger *log.Logger
}

// NewDispatcher returns a Dispatcher. A nil logger discards output.
func NewDispatcher(conda, pip Installer, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Dispatcher{Conda: conda, Pip: pip, Logger: logger}
}

// Execute runs conda for native packages, then pip for interop packages.
// If conda fails, pip is not run.
func (d *Dispatcher) Execute(ctx context.Context, p *Plan, opts Options) error {
	if p.Empty() {
		return nil
	}
	logger := d.Logger.With("txn", p.ID)

	if err := d.run(ctx, logger, d.Conda, p.Prefix, p.CondaSpecs(), opts); err != nil {
		return err
	}
	return d.run(ctx, logger, d.Pip, p.Prefix, p.PipSpecs(), opts)
}

func (d *Dispatcher) run(ctx context.Context, logger *log.Logger, inst Installer, prefix string, specs []string, opts Options) error {
	if len(specs) == 0 {
		return nil
	}
	hooks := observability.Install()
	hooks.OnInstallStart(ctx, inst.Name(), specs)
	logger.Info("installing", "installer", inst.Name(), "packages", len(specs), "dry_run", opts.DryRun)

	start := time.Now()
	err := inst.Install(ctx, prefix, specs, opts)
	hooks.OnInstallComplete(ctx, inst.Name(), specs, time.Since(start), err)
	if err != nil {
		logger.Error("install failed", "installer", inst.Name(), "err", err)
		return err
	}
	logger.Debug("install finished", "installer", inst.Name(), "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}
