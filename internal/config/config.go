package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/store"
)

// EnvPrefix prefixes every environment override, e.g. PLACER_STORE_BACKEND.
const EnvPrefix = "PLACER"

type SQLite struct {
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size"`
}

type Store struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	SQLite  SQLite `yaml:"sqlite" mapstructure:"sqlite"`
}

type Catalog struct {
	// Manifest file or directory; empty loads the built-in manifest
	Manifest string `yaml:"manifest" mapstructure:"manifest"`
}

type Placement struct {
	TransactionTimeout   time.Duration `yaml:"transaction_timeout" mapstructure:"transaction_timeout"`
	AllowReselectRemoved bool          `yaml:"allow_reselect_removed" mapstructure:"allow_reselect_removed"`
}

type Metrics struct {
	// Prometheus textfile written after each command, disabled when empty
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

type Config struct {
	DataDir   string     `yaml:"data_dir" mapstructure:"data_dir"`
	Store     Store      `yaml:"store" mapstructure:"store"`
	Catalog   Catalog    `yaml:"catalog" mapstructure:"catalog"`
	Log       log.Config `yaml:"log" mapstructure:"log"`
	Placement Placement  `yaml:"placement" mapstructure:"placement"`
	Metrics   Metrics    `yaml:"metrics" mapstructure:"metrics"`
}

func Default() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Store: Store{
			Backend: string(store.BackendBadger),
			SQLite:  SQLite{PoolSize: 4},
		},
		Log: log.Config{Level: "info", Format: "text"},
		Placement: Placement{
			TransactionTimeout:   30 * time.Second,
			AllowReselectRemoved: true,
		},
	}
}

func defaultDataDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		return "./data"
	}
	return filepath.Join(home, ".placer")
}

// setDefaults mirrors Default into v so environment variables bind to every key.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.sqlite.pool_size", d.Store.SQLite.PoolSize)
	v.SetDefault("catalog.manifest", d.Catalog.Manifest)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.enable_caller", d.Log.EnableCaller)
	v.SetDefault("placement.transaction_timeout", d.Placement.TransactionTimeout)
	v.SetDefault("placement.allow_reselect_removed", d.Placement.AllowReselectRemoved)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// New returns a viper instance with defaults, search paths and environment
// binding set up. path, when not empty, names the config file explicitly.
func New(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("placer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".placer"))
		}
		v.AddConfigPath("/etc/placer/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration. A missing config file is not an error
// unless path was given explicitly.
func Load(path string) (*Config, error) {
	return FromViper(New(path), path != "")
}

// FromViper reads and decodes the configuration held by v.
func FromViper(v *viper.Viper, requireFile bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if requireFile || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch store.Backend(strings.ToLower(c.Store.Backend)) {
	case store.BackendBadger, store.BackendSQLite, store.BackendMemory:
	default:
		return fmt.Errorf("invalid store.backend %q", c.Store.Backend)
	}
	if c.Store.SQLite.PoolSize < 1 {
		return fmt.Errorf("store.sqlite.pool_size must be positive, got %d", c.Store.SQLite.PoolSize)
	}
	if c.Placement.TransactionTimeout <= 0 {
		return fmt.Errorf("placement.transaction_timeout must be positive, got %s", c.Placement.TransactionTimeout)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	return nil
}

// StoreOptions converts the store settings for store.Open.
func (c *Config) StoreOptions(logger log.Logger) store.Options {
	return store.Options{
		Backend:        store.Backend(strings.ToLower(c.Store.Backend)),
		Path:           os.ExpandEnv(c.DataDir),
		SQLitePoolSize: c.Store.SQLite.PoolSize,
		Logger:         logger,
	}
}
