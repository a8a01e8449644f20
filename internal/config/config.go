// Package config loads .prdforge/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jywlabs/prdforge/internal/enhance"
	"github.com/jywlabs/prdforge/internal/engine"
	"github.com/jywlabs/prdforge/internal/gate"
	"github.com/jywlabs/prdforge/internal/retry"
	"github.com/jywlabs/prdforge/internal/template"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendLibSQL = "libsql"
	BackendPgx    = "pgx"
)

// StoreConfig selects the conversation store.
type StoreConfig struct {
	Backend string
	DSN     string
}

// Config is the resolved configuration.
type Config struct {
	Engine        string
	Engines       map[string]engine.EngineConfig
	MaxIterations int
	MaxRetries    int
	RetryDelay    time.Duration
	Gate          gate.Config
	Store         StoreConfig
	Testing       enhance.TestingDefaults
	CacheSize     int
	LogLevel      string
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Engine:        "claude",
		Engines:       map[string]engine.EngineConfig{},
		MaxIterations: 5,
		MaxRetries:    retry.DefaultMaxRetries,
		RetryDelay:    retry.DefaultBaseDelay,
		Gate:          gate.DefaultConfig(),
		Store:         StoreConfig{Backend: BackendFile},
		Testing:       enhance.TestingDefaults{Framework: "go", Command: "go test ./..."},
		CacheSize:     engine.DefaultCacheSize,
		LogLevel:      "info",
	}
}

// rawConfig is used for YAML unmarshaling to distinguish missing keys from
// explicit zero values.
type rawConfig struct {
	Engine        *string                      `yaml:"engine"`
	Engines       map[string]*rawEngineConfig  `yaml:"engines"`
	MaxIterations *int                         `yaml:"maxIterations"`
	MaxRetries    *int                         `yaml:"maxRetries"`
	RetryDelay    *string                      `yaml:"retryDelay"`
	Gate          struct {
		AutoAnswerThreshold  *float64 `yaml:"autoAnswerThreshold"`
		SkipIfHighConfidence *bool    `yaml:"skipIfHighConfidence"`
	} `yaml:"gate"`
	Store struct {
		Backend *string `yaml:"backend"`
		DSN     *string `yaml:"dsn"`
	} `yaml:"store"`
	Testing struct {
		Framework *string `yaml:"framework"`
		Command   *string `yaml:"command"`
	} `yaml:"testing"`
	Cache struct {
		Size *int `yaml:"size"`
	} `yaml:"cache"`
	Logging struct {
		Level *string `yaml:"level"`
	} `yaml:"logging"`
}

// rawEngineConfig holds per-engine settings from YAML.
type rawEngineConfig struct {
	Model   *string `yaml:"model"`
	Timeout *string `yaml:"timeout"`
}

// Path returns the config file location for a project directory.
func Path(dir string) string {
	return filepath.Join(dir, template.ProjectDir, template.ConfigFile)
}

// Load reads the config for the project in dir. A missing file yields the
// defaults; keys absent from the file keep their default values.
func Load(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", template.ConfigFile, err)
	}
	if err := cfg.merge(&raw); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) merge(raw *rawConfig) error {
	if raw.Engine != nil {
		c.Engine = *raw.Engine
	}
	for name, re := range raw.Engines {
		if re == nil {
			continue
		}
		ec := c.Engines[name]
		if re.Model != nil {
			ec.Model = *re.Model
		}
		if re.Timeout != nil {
			d, err := time.ParseDuration(*re.Timeout)
			if err != nil {
				return fmt.Errorf("engines.%s.timeout: %w", name, err)
			}
			ec.Timeout = d
		}
		c.Engines[name] = ec
	}
	if raw.MaxIterations != nil {
		c.MaxIterations = *raw.MaxIterations
	}
	if raw.MaxRetries != nil {
		c.MaxRetries = *raw.MaxRetries
	}
	if raw.RetryDelay != nil {
		d, err := time.ParseDuration(*raw.RetryDelay)
		if err != nil {
			return fmt.Errorf("retryDelay: %w", err)
		}
		c.RetryDelay = d
	}
	if raw.Gate.AutoAnswerThreshold != nil {
		c.Gate.AutoAnswerThreshold = *raw.Gate.AutoAnswerThreshold
	}
	if raw.Gate.SkipIfHighConfidence != nil {
		c.Gate.SkipIfHighConfidence = *raw.Gate.SkipIfHighConfidence
	}
	if raw.Store.Backend != nil {
		c.Store.Backend = *raw.Store.Backend
	}
	if raw.Store.DSN != nil {
		c.Store.DSN = *raw.Store.DSN
	}
	if raw.Testing.Framework != nil {
		c.Testing.Framework = *raw.Testing.Framework
	}
	if raw.Testing.Command != nil {
		c.Testing.Command = *raw.Testing.Command
	}
	if raw.Cache.Size != nil {
		c.CacheSize = *raw.Cache.Size
	}
	if raw.Logging.Level != nil {
		c.LogLevel = *raw.Logging.Level
	}
	return nil
}

// Validate checks that the fields are usable.
func (c *Config) Validate() error {
	if c.Engine == "" {
		return fmt.Errorf("engine must not be empty")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("maxIterations must be greater than 0")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("maxRetries must not be negative")
	}
	if c.Gate.AutoAnswerThreshold < 0 || c.Gate.AutoAnswerThreshold > 1 {
		return fmt.Errorf("gate.autoAnswerThreshold must be between 0 and 1")
	}
	switch c.Store.Backend {
	case BackendFile:
	case BackendSQLite, BackendLibSQL, BackendPgx:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("store.backend must be one of file, sqlite, libsql, pgx (got %q)", c.Store.Backend)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache.size must not be negative")
	}
	return nil
}

// EngineConfig returns the settings for an engine, or nil when none are set.
func (c *Config) EngineConfig(name string) *engine.EngineConfig {
	ec, ok := c.Engines[name]
	if !ok || (ec.Model == "" && ec.Timeout == 0) {
		return nil
	}
	return &ec
}

// RetryConfig returns the retry settings for engine calls.
func (c *Config) RetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	if c.MaxRetries > 0 {
		cfg.MaxRetries = c.MaxRetries
	}
	if c.RetryDelay > 0 {
		cfg.BaseDelay = c.RetryDelay
	}
	return cfg
}
