// Package config loads tool configuration from defaults, an optional
// sqlscout.yaml file, SQLSCOUT_-prefixed environment variables, and CLI
// flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names searched in the working directory (and upward).
const (
	ConfigFileName    = "sqlscout.yaml"
	ConfigFileNameAlt = "sqlscout.yml"
)

// maxUpwardSearchLevels limits how far up the directory tree the config
// file search goes.
const maxUpwardSearchLevels = 10

// Default values.
const (
	DefaultAdapter      = "duckdb"
	DefaultSchemaName   = "public"
	DefaultCacheTTL     = 5 * time.Minute
	DefaultCacheBackoff = 30 * time.Second
	DefaultLintDebounce = 450 * time.Millisecond
	DefaultStateFile    = ".sqlscout/state.db"
	DefaultOutput       = "table"
)

// DatabaseConfig selects and parameterizes the database adapter.
type DatabaseConfig struct {
	// Adapter is the adapter type ("postgres", "duckdb").
	Adapter string `koanf:"adapter"`

	// URL is the connection string for network databases. ${VAR}
	// references are expanded from the environment.
	URL string `koanf:"url"`

	// Path is the database file for file-based adapters.
	Path string `koanf:"path"`

	// Schema is the default schema for unqualified identifiers.
	Schema string `koanf:"schema"`
}

// CacheConfig tunes the schema snapshot cache.
type CacheConfig struct {
	TTL     time.Duration `koanf:"ttl"`
	Backoff time.Duration `koanf:"backoff"`
}

// LintConfig tunes background validation.
type LintConfig struct {
	// Enabled turns statement validation diagnostics on.
	Enabled bool `koanf:"enabled"`

	// Debounce is the quiet window before a changed document validates.
	Debounce time.Duration `koanf:"debounce"`
}

// Config holds all configuration options.
type Config struct {
	Database  DatabaseConfig `koanf:"database"`
	Cache     CacheConfig    `koanf:"cache"`
	Lint      LintConfig     `koanf:"lint"`
	StatePath string         `koanf:"state_path"`
	Verbose   bool           `koanf:"verbose"`
	Output    string         `koanf:"output"`

	// ProjectRoot is where the config file was found (or the working
	// directory). Relative paths resolve against it.
	ProjectRoot string `koanf:"-"`
}

// configExistsIn checks whether a config file exists in the directory.
func configExistsIn(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigFile searches upward from startDir for a config file.
func findConfigFile(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Load builds the configuration. cfgFile, when non-empty, names an explicit
// config file; otherwise sqlscout.yaml is searched upward from the working
// directory. flags may be nil.
//
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"database.adapter": DefaultAdapter,
		"database.schema":  DefaultSchemaName,
		"cache.ttl":        DefaultCacheTTL,
		"cache.backoff":    DefaultCacheBackoff,
		"lint.enabled":     true,
		"lint.debounce":    DefaultLintDebounce,
		"state_path":       DefaultStateFile,
		"verbose":          false,
		"output":           DefaultOutput,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	projectRoot, _ := os.Getwd()
	if projectRoot == "" {
		projectRoot = "."
	}

	if cfgFile == "" {
		if found := findConfigFile(projectRoot); found != "" {
			cfgFile = found
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
		if abs, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// SQLSCOUT_DATABASE_URL -> database.url
	if err := k.Load(env.Provider("SQLSCOUT_", ".", func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, "SQLSCOUT_"))
		if key, ok := envKeys[name]; ok {
			return key
		}
		return name
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", ".")
			// Flags use short names; map them onto config keys.
			switch f.Name {
			case "adapter":
				key = "database.adapter"
			case "url":
				key = "database.url"
			case "db-path":
				key = "database.path"
			case "schema":
				key = "database.schema"
			case "state":
				key = "state_path"
			case "debounce":
				key = "lint.debounce"
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot
	cfg.Database.URL = expandEnvVars(cfg.Database.URL)
	if cfg.Database.Path != "" && cfg.Database.Path != ":memory:" && !filepath.IsAbs(cfg.Database.Path) {
		cfg.Database.Path = filepath.Join(projectRoot, cfg.Database.Path)
	}
	if cfg.StatePath != "" && cfg.StatePath != ":memory:" && !filepath.IsAbs(cfg.StatePath) {
		cfg.StatePath = filepath.Join(projectRoot, cfg.StatePath)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Adapter {
	case "postgres", "duckdb":
	default:
		return fmt.Errorf("unknown database adapter %q", c.Database.Adapter)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.Backoff < 0 {
		return fmt.Errorf("cache.backoff cannot be negative, got %s", c.Cache.Backoff)
	}
	if c.Lint.Debounce < 0 {
		return fmt.Errorf("lint.debounce cannot be negative, got %s", c.Lint.Debounce)
	}
	return nil
}

// ConnTarget returns the adapter's connection target: the URL for network
// databases, the path otherwise.
func (c *Config) ConnTarget() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return c.Database.Path
}

// envKeys maps SQLSCOUT_ environment variable suffixes (lowercased) onto
// config keys.
var envKeys = map[string]string{
	"database_adapter": "database.adapter",
	"database_url":     "database.url",
	"database_path":    "database.path",
	"database_schema":  "database.schema",
	"cache_ttl":        "cache.ttl",
	"cache_backoff":    "cache.backoff",
	"lint_enabled":     "lint.enabled",
	"lint_debounce":    "lint.debounce",
	"state_path":       "state_path",
	"verbose":          "verbose",
	"output":           "output",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} references with environment values. Unset
// variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val := os.Getenv(name); val != "" {
			return val
		}
		return match
	})
}
