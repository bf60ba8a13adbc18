// Package config loads DailyUse settings.
//
// Values are applied in order: built-in defaults, the optional YAML file,
// DAILYUSE_* environment variables, and finally command-line flags
// (applied by the caller).
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/dailyuse/internal/crypto"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "DAILYUSE_"

// Config is the application configuration.
type Config struct {
	// DataDir holds the SQLite and BoltDB files.
	DataDir string `yaml:"data_dir"`

	// DBFile is the SQLite file name, relative to DataDir unless absolute.
	DBFile string `yaml:"db_file"`

	// KVFile is the BoltDB file for application preferences.
	KVFile string `yaml:"kv_file"`

	// ListenAddr is the loopback address of the IPC server.
	ListenAddr string `yaml:"listen_addr"`

	// BcryptCost is the work factor for account password hashes.
	BcryptCost int `yaml:"bcrypt_cost"`

	Log       LogConfig       `yaml:"log"`
	Token     TokenConfig     `yaml:"token"`
	Remember  RememberConfig  `yaml:"remember"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// LogConfig configures slog output.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level"`
	// Format: text or json
	Format string `yaml:"format"`
}

// TokenConfig configures session tokens.
type TokenConfig struct {
	// Secret signs tokens. Empty means a secret is generated and kept in the preferences store.
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

// RememberConfig configures the key for saved "remember me" passwords.
type RememberConfig struct {
	Secret string `yaml:"secret"`
	Salt   string `yaml:"salt"`
}

// RateLimitConfig limits password attempts per username.
type RateLimitConfig struct {
	Attempts int           `yaml:"attempts"`
	Window   time.Duration `yaml:"window"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dataDir := "."
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(dir, "dailyuse")
	}

	return &Config{
		DataDir:    dataDir,
		DBFile:     "dailyuse.db",
		KVFile:     "store.db",
		ListenAddr: "127.0.0.1:7420",
		BcryptCost: crypto.DefaultBcryptCost,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Token: TokenConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Remember: RememberConfig{
			Secret: crypto.DefaultRememberSecret,
			Salt:   crypto.DefaultRememberSalt,
		},
		RateLimit: RateLimitConfig{
			Attempts: 5,
			Window:   time.Minute,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (optional)
// and the environment. The result is validated.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path == "" {
		path, _ = lookup(EnvPrefix + "CONFIG")
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile merges the YAML file into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnv переопределяет значения из переменных окружения DAILYUSE_*
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DATA_DIR":        &c.DataDir,
		"DB_FILE":         &c.DBFile,
		"KV_FILE":         &c.KVFile,
		"LISTEN_ADDR":     &c.ListenAddr,
		"LOG_LEVEL":       &c.Log.Level,
		"LOG_FORMAT":      &c.Log.Format,
		"TOKEN_SECRET":    &c.Token.Secret,
		"REMEMBER_SECRET": &c.Remember.Secret,
		"REMEMBER_SALT":   &c.Remember.Salt,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"TOKEN_TTL":         &c.Token.TTL,
		"RATE_LIMIT_WINDOW": &c.RateLimit.Window,
	}
	for name, dst := range durations {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		"BCRYPT_COST":         &c.BcryptCost,
		"RATE_LIMIT_ATTEMPTS": &c.RateLimit.Attempts,
	}
	for name, dst := range ints {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	return nil
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir cannot be empty"))
	}
	if c.DBFile == "" {
		errs = append(errs, errors.New("db_file cannot be empty"))
	}
	if c.KVFile == "" {
		errs = append(errs, errors.New("kv_file cannot be empty"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.Log.Format))
	}
	if c.Token.TTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.Remember.Secret == "" || c.Remember.Salt == "" {
		errs = append(errs, errors.New("remember secret and salt cannot be empty"))
	}
	if c.RateLimit.Attempts <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit attempts and window must be positive"))
	}

	return errors.Join(errs...)
}

// DBPath returns the SQLite file path.
func (c *Config) DBPath() string {
	return c.resolve(c.DBFile)
}

// KVPath returns the BoltDB file path.
func (c *Config) KVPath() string {
	return c.resolve(c.KVFile)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) || name == ":memory:" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// NewLogger creates a slog logger writing to w according to the log settings.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
