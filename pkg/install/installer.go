package install

import (
	"context"
	"io"

	"github.com/matzehuels/condapip/pkg/errors"
	"github.com/matzehuels/condapip/pkg/prefix"
)

// Options control a single installer run.
type Options struct {
	DryRun   bool
	Yes      bool
	Channels []string
}

// Installer installs specs into a prefix.
type Installer interface {
	Name() string
	Install(ctx context.Context, prefix string, specs []string, opts Options) error
}

// CondaInstaller delegates to the conda executable.
type CondaInstaller struct {
	Exe    string
	Runner Runner
	Stdout io.Writer
	Stderr io.Writer
}

// NewConda returns a CondaInstaller. An empty exe means "conda" on PATH.
func NewConda(exe string, r Runner, stdout, stderr io.Writer) *CondaInstaller {
	if exe == "" {
		exe = "conda"
	}
	if r == nil {
		r = ExecRunner{}
	}
	return &CondaInstaller{Exe: exe, Runner: r, Stdout: stdout, Stderr: stderr}
}

// Name implements Installer.
func (c *CondaInstaller) Name() string { return "conda" }

// Command returns the invocation Install would run.
func (c *CondaInstaller) Command(prefix string, specs []string, opts Options) Command {
	args := []string{"install", "--prefix", prefix}
	if opts.Yes {
		args = append(args, "--yes")
	}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}
	for _, ch := range opts.Channels {
		args = append(args, "--channel", ch)
	}
	args = append(args, specs...)
	return Command{Path: c.Exe, Args: args, Stdout: c.Stdout, Stderr: c.Stderr}
}

// Install implements Installer.
func (c *CondaInstaller) Install(ctx context.Context, prefix string, specs []string, opts Options) error {
	if len(specs) == 0 {
		return nil
	}
	if err := c.Runner.Run(ctx, c.Command(prefix, specs, opts)); err != nil {
		return errors.Wrap(errors.ErrCodeInstallFailed, err, "conda install into %s", prefix)
	}
	return nil
}

// PipInstaller runs pip with the prefix's own interpreter so packages land
// in the prefix's site-packages.
type PipInstaller struct {
	Runner Runner
	Stdout io.Writer
	Stderr io.Writer
}

// NewPip returns a PipInstaller.
func NewPip(r Runner, stdout, stderr io.Writer) *PipInstaller {
	if r == nil {
		r = ExecRunner{}
	}
	return &PipInstaller{Runner: r, Stdout: stdout, Stderr: stderr}
}

// Name implements Installer.
func (p *PipInstaller) Name() string { return "pip" }

// Command returns the invocation Install would run. Channels and Yes have
// no pip equivalent and are ignored.
func (p *PipInstaller) Command(pfx string, specs []string, opts Options) Command {
	args := []string{"-m", "pip", "install", "--disable-pip-version-check"}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}
	args = append(args, specs...)
	return Command{
		Path:   prefix.Python(pfx),
		Args:   args,
		Env:    []string{"PIP_NO_INPUT=1"},
		Stdout: p.Stdout,
		Stderr: p.Stderr,
	}
}

// Install implements Installer.
func (p *PipInstaller) Install(ctx context.Context, pfx string, specs []string, opts Options) error {
	if len(specs) == 0 {
		return nil
	}
	if err := p.Runner.Run(ctx, p.Command(pfx, specs, opts)); err != nil {
		return errors.Wrap(errors.ErrCodeInstallFailed, err, "pip install into %s", pfx)
	}
	return nil
}
