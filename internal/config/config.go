// Package config loads stacksolve settings shared by the CLI and the server.
//
// Settings come from, in increasing precedence: built-in defaults, a
// stacksolve.toml or stacksolve.yaml file, a .env file, STACKSOLVE_*
// environment variables, and finally command-line flags (applied by the
// caller).
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/stacksolve/pkg/errors"
)

const appName = "stacksolve"

// Backend names.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendMongo = "mongo"
	BackendRedis = "redis"
)

// Config is the full settings tree.
type Config struct {
	Repo   RepoConfig   `toml:"repo" yaml:"repo"`
	Solver SolverConfig `toml:"solver" yaml:"solver"`
	Splice SpliceConfig `toml:"splice" yaml:"splice"`
	Store  StoreConfig  `toml:"store" yaml:"store"`
	Cache  CacheConfig  `toml:"cache" yaml:"cache"`
	Server ServerConfig `toml:"server" yaml:"server"`

	// File is the settings file that was read, if any.
	File string `toml:"-" yaml:"-"`
}

// RepoConfig locates package recipes.
type RepoConfig struct {
	Paths []string `toml:"paths" yaml:"paths"`
	// Versions is an optional versions.yaml with per-version overrides.
	Versions string `toml:"versions" yaml:"versions"`
}

// SolverConfig holds the default solver policy.
type SolverConfig struct {
	Compilers    []string            `toml:"compilers" yaml:"compilers"`
	Arch         string              `toml:"arch" yaml:"arch"`
	Providers    map[string][]string `toml:"providers" yaml:"providers"`
	Reuse        bool                `toml:"reuse" yaml:"reuse"`
	Criteria     []string            `toml:"criteria" yaml:"criteria"`
	VersionOrder string              `toml:"version_order" yaml:"version_order"`
	Timeout      time.Duration       `toml:"timeout" yaml:"timeout"`
	MaxSteps     int                 `toml:"max_steps" yaml:"max_steps"`
	Workers      int                 `toml:"workers" yaml:"workers"`
}

// SpliceConfig enables splicing and names an explicit splice policy.
type SpliceConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Policy  string `toml:"policy" yaml:"policy"`
}

// StoreConfig selects where installed specs live.
type StoreConfig struct {
	Backend       string `toml:"backend" yaml:"backend"`
	Path          string `toml:"path" yaml:"path"`
	MongoURI      string `toml:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database" yaml:"mongo_database"`
}

// CacheConfig selects the solution and artifact cache.
type CacheConfig struct {
	Backend       string        `toml:"backend" yaml:"backend"`
	Dir           string        `toml:"dir" yaml:"dir"`
	RedisAddr     string        `toml:"redis_addr" yaml:"redis_addr"`
	RedisPassword string        `toml:"redis_password" yaml:"redis_password"`
	RedisDB       int           `toml:"redis_db" yaml:"redis_db"`
	TTL           time.Duration `toml:"ttl" yaml:"ttl"`
	// Namespace prefixes every cache key, so deployments can share a Redis.
	Namespace string `toml:"namespace" yaml:"namespace"`
}

// ServerConfig configures "stacksolve serve".
type ServerConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Repo:   RepoConfig{Paths: []string{"packages"}},
		Solver: SolverConfig{Timeout: time.Minute},
		Store:  StoreConfig{Backend: BackendFile, Path: dataDir("store"), MongoDatabase: "stacksolve"},
		Cache:  CacheConfig{Backend: BackendFile, Dir: cacheDir(), RedisAddr: "localhost:6379"},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads settings. An empty path searches STACKSOLVE_CONFIG, then
// stacksolve.toml, stacksolve.yaml and stacksolve.yml in the working
// directory, then config.toml in the user config directory. No file at all
// is fine; an explicit path that does not exist is not.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = findFile()
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv("STACKSOLVE_CONFIG"); p != "" {
		return p
	}
	candidates := []string{"stacksolve.toml", "stacksolve.yaml", "stacksolve.yml"}
	if dir, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, appName, "config.toml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrap(errors.ErrCodeFileNotFound, err, "config file %s", path)
		}
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "read config %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode %s", path)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode %s", path)
		}
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "config %s: unknown extension (want .toml, .yaml or .yml)", path)
	}
	c.File = path
	return nil
}

// applyEnv overrides settings from STACKSOLVE_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(key, sep string, dst *[]string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = splitList(v, sep)
		}
	}
	var firstErr error
	parse := func(key string, fn func(string) error) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" || firstErr != nil {
			return
		}
		if err := fn(strings.TrimSpace(v)); err != nil {
			firstErr = errors.Wrap(errors.ErrCodeInvalidInput, err, "%s=%q", key, v)
		}
	}

	list("STACKSOLVE_REPO", string(os.PathListSeparator), &c.Repo.Paths)
	str("STACKSOLVE_VERSIONS", &c.Repo.Versions)

	list("STACKSOLVE_COMPILERS", ",", &c.Solver.Compilers)
	str("STACKSOLVE_ARCH", &c.Solver.Arch)
	list("STACKSOLVE_CRITERIA", ",", &c.Solver.Criteria)
	str("STACKSOLVE_VERSION_ORDER", &c.Solver.VersionOrder)
	parse("STACKSOLVE_REUSE", func(v string) (err error) {
		c.Solver.Reuse, err = strconv.ParseBool(v)
		return err
	})
	parse("STACKSOLVE_TIMEOUT", func(v string) (err error) {
		c.Solver.Timeout, err = time.ParseDuration(v)
		return err
	})
	parse("STACKSOLVE_MAX_STEPS", func(v string) (err error) {
		c.Solver.MaxSteps, err = strconv.Atoi(v)
		return err
	})

	parse("STACKSOLVE_SPLICE", func(v string) (err error) {
		c.Splice.Enabled, err = strconv.ParseBool(v)
		return err
	})
	str("STACKSOLVE_SPLICE_POLICY", &c.Splice.Policy)

	str("STACKSOLVE_STORE", &c.Store.Backend)
	str("STACKSOLVE_STORE_PATH", &c.Store.Path)
	str("STACKSOLVE_MONGO_URI", &c.Store.MongoURI)

	str("STACKSOLVE_CACHE", &c.Cache.Backend)
	str("STACKSOLVE_CACHE_DIR", &c.Cache.Dir)
	str("STACKSOLVE_REDIS_ADDR", &c.Cache.RedisAddr)
	str("STACKSOLVE_REDIS_PASSWORD", &c.Cache.RedisPassword)
	str("STACKSOLVE_CACHE_NAMESPACE", &c.Cache.Namespace)

	str("STACKSOLVE_ADDR", &c.Server.Addr)
	return firstErr
}

// Validate checks backend names and numeric ranges.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendNone, BackendFile:
	case BackendMongo:
		if c.Store.MongoURI == "" {
			return errors.New(errors.ErrCodeInvalidInput, "store backend mongo requires mongo_uri")
		}
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown store backend %q (must be one of: file, mongo, none)", c.Store.Backend)
	}
	switch c.Cache.Backend {
	case BackendNone, BackendFile, BackendRedis:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q (must be one of: file, redis, none)", c.Cache.Backend)
	}
	if c.Solver.Timeout < 0 || c.Solver.MaxSteps < 0 || c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "timeout, max_steps and ttl must not be negative")
	}
	if len(c.Repo.Paths) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no repository paths configured")
	}
	return nil
}

func splitList(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cacheDir returns the cache directory using XDG standard (~/.cache/stacksolve/).
func cacheDir() string {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(home, ".cache", appName)
}

// dataDir returns a directory under the XDG data home (~/.local/share/stacksolve/).
func dataDir(name string) string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName, name)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName, name)
	}
	return filepath.Join(home, ".local", "share", appName, name)
}
