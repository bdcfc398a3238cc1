package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	cperrors "github.com/matzehuels/condapip/pkg/errors"
	"github.com/matzehuels/condapip/pkg/install"
	"github.com/matzehuels/condapip/pkg/integrations"
	"github.com/matzehuels/condapip/pkg/integrations/pypi"
	"github.com/matzehuels/condapip/pkg/prefix"
)

// installOpts holds the flags of the install command.
type installOpts struct {
	prefix   string
	backend  string
	channels []string
	dryRun   bool
	yes      bool
	force    bool
	noCache  bool
}

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	var opts installOpts

	cmd := &cobra.Command{
		Use:   "install [flags] SPEC...",
		Short: "Install PyPI packages into a conda environment",
		Long: `Install translates each PyPI specifier into a conda specifier. Packages
with a conda-forge counterpart are installed by conda; the rest are
installed by pip inside the environment.`,
		Example: `  condapip install build "requests[socks]>=2.28"
  condapip install -p ./env --backend grayskull ib_insync
  condapip install --dry-run numpy=1.20`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInstall(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.prefix, "prefix", "p", "", "target environment (default $CONDA_PREFIX)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "use only this mapping backend (plus fallbacks)")
	cmd.Flags().StringSliceVarP(&opts.channels, "channel", "c", nil, "conda channel (repeatable, default from config)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "show what would be installed")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.force, "force-reinstall", false, "install even if already satisfied")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the response cache")

	return cmd
}

func (c *CLI) runInstall(ctx context.Context, args []string, opts installOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	path, err := prefixPath(opts.prefix)
	if err != nil {
		return err
	}

	e, err := c.newEnv(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer e.Close()

	res, err := c.resolver(e, opts.backend)
	if err != nil {
		return err
	}
	logger.Debug("mapping backends", "priority", res.Sources())

	sp := startSpinner(ctx, "Resolving packages...")
	resolutions, err := res.ResolveAll(ctx, args)
	if err != nil {
		sp.StopWithError("Resolution failed")
		return err
	}
	sp.StopWithSuccess(fmt.Sprintf("Resolved %d package(s)", len(resolutions)))

	data, err := prefix.Load(path, true)
	if err != nil {
		return err
	}

	plan := install.NewPlan(resolutions, data, opts.force)
	logger.Debug("install plan", "txn", plan.ID, "native", len(plan.Native), "interop", len(plan.Interop), "satisfied", len(plan.Satisfied))

	for _, r := range plan.Satisfied {
		printDetail("%s is already installed", r.PyPISpec)
	}
	if plan.Empty() {
		printSuccess("All packages are already installed.")
		return nil
	}

	if e.cfg.PyPI.Verify {
		if err := verifyInterop(ctx, c.pypiClient(e), plan); err != nil {
			return err
		}
	}

	iopts := install.Options{DryRun: opts.dryRun, Yes: opts.yes, Channels: opts.channels}
	if len(iopts.Channels) == 0 {
		iopts.Channels = e.cfg.Channels
	}

	printInfo("Packages to install into %s", StyleHighlight.Render(path))
	for _, r := range slices.Concat(plan.Native, plan.Interop) {
		printResolution(r, iopts.Channels[0])
	}
	printNewline()

	if opts.dryRun {
		printWarning("Dry run: the environment will not be changed")
	}
	if !opts.yes && !opts.dryRun {
		if !c.interactive() {
			return cperrors.New(cperrors.ErrCodeConfirmationRequired, "refusing to install without confirmation; pass --yes")
		}
		ok, err := confirm(ctx, "Proceed with installation?")
		if err != nil {
			return err
		}
		if !ok {
			return cperrors.New(cperrors.ErrCodeAborted, "installation aborted")
		}
		iopts.Yes = true
	}

	d := install.NewDispatcher(
		install.NewConda(e.cfg.CondaExe, c.Runner, c.Stdout, c.Stderr),
		install.NewPip(c.Runner, c.Stdout, c.Stderr),
		logger,
	)
	if err := d.Execute(ctx, plan, iopts); err != nil {
		return err
	}

	n := len(plan.Native) + len(plan.Interop)
	if opts.dryRun {
		printSuccess("Dry run complete: %d package(s) would be installed", n)
	} else {
		printSuccess("Installed %d package(s)", n)
	}
	prog.done(fmt.Sprintf("Transaction %s", plan.ID))
	return nil
}

// prefixPath returns the explicit prefix, or the active environment.
func prefixPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv("CONDA_PREFIX"); env != "" {
		return env, nil
	}
	return "", cperrors.New(cperrors.ErrCodeInvalidPrefix, "no prefix given and no conda environment is active; use --prefix")
}

// verifyInterop checks that every pip-interop package has a matching PyPI
// release. Network failures are logged and skipped; pip reports them anyway.
func verifyInterop(ctx context.Context, client *pypi.Client, plan *install.Plan) error {
	logger := loggerFromContext(ctx)
	var missing []string
	for _, r := range plan.Interop {
		if r.Spec.URL != "" {
			continue
		}
		info, err := client.FetchPackage(ctx, r.Name(), false)
		switch {
		case errors.Is(err, integrations.ErrNotFound):
			missing = append(missing, r.Name())
			continue
		case err != nil:
			logger.Warn("could not verify package on PyPI", "package", r.Name(), "err", err)
			continue
		}
		if info.Latest(r.Spec) == "" {
			return cperrors.New(cperrors.ErrCodePackageNotFound, "no release of %s satisfies %s", r.Name(), r.PyPISpec)
		}
	}
	if len(missing) > 0 {
		return cperrors.New(cperrors.ErrCodePackageNotFound, "not found on PyPI: %s", strings.Join(missing, ", "))
	}
	return nil
}
