// Package config loads condapip settings from defaults, a YAML file, a .env
// file and CONDAPIP_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	cperrors "github.com/matzehuels/condapip/pkg/errors"
)

const envPrefix = "CONDAPIP"

// Config captures the runtime configuration for the CLI and the server.
type Config struct {
	Backends  []string       `mapstructure:"backends"`
	Fallbacks []string       `mapstructure:"fallbacks"`
	Channels  []string       `mapstructure:"channels"`
	CondaExe  string         `mapstructure:"conda_exe"`
	Cache     CacheConfig    `mapstructure:"cache"`
	Mappings  MappingsConfig `mapstructure:"mappings"`
	PyPI      PyPIConfig     `mapstructure:"pypi"`
	Mongo     MongoConfig    `mapstructure:"mongo"`
	Server    ServerConfig   `mapstructure:"server"`
}

type CacheConfig struct {
	TTL      time.Duration `mapstructure:"ttl"`
	RedisURL string        `mapstructure:"redis_url"`
}

type MappingsConfig struct {
	StaticFile   string `mapstructure:"static_file"`
	GrayskullURL string `mapstructure:"grayskull_url"`
	CFGraphURL   string `mapstructure:"cf_graph_url"`
	AnacondaURL  string `mapstructure:"anaconda_url"`
}

type PyPIConfig struct {
	URL string `mapstructure:"url"`
	// Verify checks that pip-interop packages exist on PyPI before installing.
	Verify bool `mapstructure:"verify"`
}

type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// Enabled reports whether the mongo mapping source is configured.
func (m MongoConfig) Enabled() bool { return m.URI != "" }

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// Options controls the config loader behavior.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load returns the merged configuration.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	setDefaults(v)

	explicit := opts.ConfigFile
	if explicit == "" {
		explicit = os.Getenv(envPrefix + "_CONFIG")
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Backends = normalizeStringSlice(cfg.Backends)
	cfg.Fallbacks = normalizeStringSlice(cfg.Fallbacks)
	cfg.Channels = normalizeStringSlice(cfg.Channels)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate ensures required values are set.
func (c *Config) Validate() error {
	var missing []string
	if len(c.Backends) == 0 && len(c.Fallbacks) == 0 {
		missing = append(missing, "backends")
	}
	if len(c.Channels) == 0 {
		missing = append(missing, "channels")
	}
	if c.CondaExe == "" {
		missing = append(missing, "conda_exe")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	for _, u := range []string{c.PyPI.URL, c.Mappings.AnacondaURL} {
		if err := cperrors.ValidateURL(u); err != nil {
			return fmt.Errorf("invalid API URL %q: %w", u, err)
		}
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be >= 0")
	}
	if c.Mongo.Enabled() && (c.Mongo.Database == "" || c.Mongo.Collection == "") {
		return fmt.Errorf("mongo.database and mongo.collection are required when mongo.uri is set")
	}
	return nil
}

// Channel returns the primary channel, used by the channel probe.
func (c *Config) Channel() string { return c.Channels[0] }

func setDefaults(v *viper.Viper) {
	v.SetDefault("backends", []string{"static", "grayskull", "cf-graph"})
	v.SetDefault("fallbacks", []string{"anaconda"})
	v.SetDefault("channels", []string{"conda-forge"})

	condaExe := os.Getenv("CONDA_EXE")
	if condaExe == "" {
		condaExe = "conda"
	}
	v.SetDefault("conda_exe", condaExe)

	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.redis_url", "")

	v.SetDefault("mappings.static_file", "")
	v.SetDefault("mappings.grayskull_url", "https://raw.githubusercontent.com/conda/grayskull/main/src/grayskull/strategy/config.yaml")
	v.SetDefault("mappings.cf_graph_url", "https://raw.githubusercontent.com/regro/cf-graph-countyfair/master/mappings/pypi/name_mapping.json")
	v.SetDefault("mappings.anaconda_url", "https://api.anaconda.org")

	v.SetDefault("pypi.url", "https://pypi.org/pypi")
	v.SetDefault("pypi.verify", true)

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "condapip")
	v.SetDefault("mongo.collection", "mappings")

	v.SetDefault("server.addr", "127.0.0.1:8765")
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.shutdown_timeout", "10s")
}

// Dir returns the configuration directory ($XDG_CONFIG_HOME/condapip).
func Dir() (string, error) {
	if home := os.Getenv("XDG_CONFIG_HOME"); home != "" {
		return filepath.Join(home, "condapip"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "condapip"), nil
}

func normalizeStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clean := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				clean = append(clean, trimmed)
			}
		}
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}
