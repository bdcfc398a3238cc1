package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/condapip/internal/config"
	"github.com/matzehuels/condapip/pkg/buildinfo"
	"github.com/matzehuels/condapip/pkg/cache"
	"github.com/matzehuels/condapip/pkg/install"
	"github.com/matzehuels/condapip/pkg/integrations"
	"github.com/matzehuels/condapip/pkg/integrations/anaconda"
	"github.com/matzehuels/condapip/pkg/integrations/pypi"
	"github.com/matzehuels/condapip/pkg/mapping"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "condapip"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// ConfigFile and EnvFile override the default config lookup.
	ConfigFile string
	EnvFile    string

	// Runner executes conda and pip. Nil means os/exec.
	Runner install.Runner

	// Interactive reports whether prompts may be shown. Nil means
	// "stdin and stdout are terminals".
	Interactive func() bool

	// Stdout and Stderr receive installer output.
	Stdout io.Writer
	Stderr io.Writer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "condapip installs PyPI packages into conda environments",
		Long: `condapip translates PyPI package specifiers into conda specifiers using
name-mapping backends, installs mapped packages with conda and hands the
rest to pip inside the environment.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if c.Logger.GetLevel() <= log.DebugLevel {
			registerLogHooks(c.Logger)
		}
		cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		return nil
	}
	root.PersistentFlags().StringVar(&c.ConfigFile, "config", "", "config file (default $XDG_CONFIG_HOME/condapip/config.yaml)")
	root.PersistentFlags().StringVar(&c.EnvFile, "env-file", "", "dotenv file to load (default .env)")

	root.AddCommand(c.installCommand())
	root.AddCommand(c.convertCommand())
	root.AddCommand(c.backendsCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) interactive() bool {
	if c.Interactive != nil {
		return c.Interactive()
	}
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// =============================================================================
// Environment - config, cache and mapping sources for one command run
// =============================================================================

type env struct {
	cfg      *config.Config
	cache    cache.Cache
	registry *mapping.Registry
}

func (e *env) Close() error {
	err := e.registry.Close()
	if cerr := e.cache.Close(); err == nil {
		err = cerr
	}
	return err
}

// newEnv loads configuration and wires the cache and mapping registry.
func (c *CLI) newEnv(ctx context.Context, noCache bool) (*env, error) {
	cfg, err := config.Load(config.Options{ConfigFile: c.ConfigFile, EnvFile: c.EnvFile})
	if err != nil {
		return nil, err
	}
	ch, err := c.newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	reg, err := c.newRegistry(ctx, cfg, ch)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return &env{cfg: cfg, cache: ch, registry: reg}, nil
}

// newCache picks Redis when configured, else the file cache. A Redis
// outage degrades to the file cache rather than failing the command.
func (c *CLI) newCache(ctx context.Context, cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err == nil {
			c.Logger.Debug("using redis cache")
			return rc, nil
		}
		c.Logger.Warn("redis cache unavailable, using file cache", "err", err)
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newRegistry registers every available mapping source.
func (c *CLI) newRegistry(ctx context.Context, cfg *config.Config, ch cache.Cache) (*mapping.Registry, error) {
	reg := mapping.NewRegistry()

	static, err := mapping.NewStatic(cfg.Mappings.StaticFile)
	if err != nil {
		return nil, err
	}
	reg.Register("static", static)

	client := integrations.NewClient(ch, "mapping:", cfg.Cache.TTL, nil)
	reg.Register("grayskull", mapping.NewGrayskull(client, cfg.Mappings.GrayskullURL))
	reg.Register("cf-graph", mapping.NewCFGraph(client, cfg.Mappings.CFGraphURL))

	ac := anaconda.NewClient(ch, cfg.Cache.TTL).WithBaseURL(cfg.Mappings.AnacondaURL)
	reg.Register("anaconda", mapping.NewChannelProbe(ac, cfg.Channel()))

	if cfg.Mongo.Enabled() {
		m, err := mapping.NewMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			c.Logger.Warn("mongo mapping source unavailable", "err", err)
			reg.Register("mongo", mapping.Unavailable("mongo", err))
		} else {
			reg.Register("mongo", m)
		}
	}
	return reg, nil
}

// priority returns the backend list for a command: the configured list,
// or a single --backend choice, followed by the fallbacks.
func priority(cfg *config.Config, backend string) []string {
	if backend != "" {
		return mapping.Priority([]string{backend}, cfg.Fallbacks)
	}
	return mapping.Priority(cfg.Backends, cfg.Fallbacks)
}

// resolver builds a Resolver over the chosen backends.
func (c *CLI) resolver(e *env, backend string) (*mapping.Resolver, error) {
	sources, err := e.registry.Sources(priority(e.cfg, backend))
	if err != nil {
		return nil, err
	}
	return mapping.NewResolver(sources, mapping.WithLogger(c.Logger)), nil
}

func (c *CLI) pypiClient(e *env) *pypi.Client {
	return pypi.NewClient(e.cache, e.cfg.Cache.TTL).WithBaseURL(e.cfg.PyPI.URL)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/condapip/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
