package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/cipherdex/internal/domain/field"
)

// Config holds the cipherdex API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	SearchStore SearchStoreConfig `yaml:"search_store"`
	RecordStore RecordStoreConfig `yaml:"record_store"`
	Virtual     VirtualConfig     `yaml:"virtual"`
	Encryption  EncryptionConfig  `yaml:"encryption"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// SearchStoreConfig holds search store connection settings.
type SearchStoreConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RecordStoreConfig holds record store connection settings.
type RecordStoreConfig struct {
	Table            string `yaml:"table"`
	Region           string `yaml:"region"`
	Endpoint         string `yaml:"endpoint"` // non-empty for a local emulator
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// VirtualConfig holds virtualization layer settings. An empty base_url
// disables the layer entirely.
type VirtualConfig struct {
	BaseURL        string `yaml:"base_url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	TimeoutSec     int    `yaml:"timeout_sec"`
	LicenseCeiling int    `yaml:"license_ceiling"`
}

// EncryptionConfig holds the master key and the searchable field
// registrations.
type EncryptionConfig struct {
	// MasterKey is the base64-encoded master key, usually injected via
	// ${CIPHERDEX_MASTER_KEY}.
	MasterKey string        `yaml:"master_key"`
	Fields    []FieldConfig `yaml:"fields"`
}

// FieldConfig registers one searchable field.
type FieldConfig struct {
	Name           string   `yaml:"name"`
	Classes        []string `yaml:"classes"`
	MinQueryLength int      `yaml:"min_query_length"`
	MaxQueryLength int      `yaml:"max_query_length"`
	MaxLength      int      `yaml:"max_length"`
}

// IngestConfig holds ingestion run settings.
type IngestConfig struct {
	BatchSize           int  `yaml:"batch_size"`
	DefaultCount        int  `yaml:"default_count"`
	PerRecordTimeoutSec int  `yaml:"per_record_timeout_sec"` // 0 = no deadline
	HaltOnMismatch      bool `yaml:"halt_on_mismatch"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.SearchStore.KeyPrefix == "" {
		c.SearchStore.KeyPrefix = "cipherdex:"
	}
	if c.SearchStore.ReadinessTimeout <= 0 {
		c.SearchStore.ReadinessTimeout = 10
	}
	if c.RecordStore.ReadinessTimeout <= 0 {
		c.RecordStore.ReadinessTimeout = 10
	}
	if c.Virtual.TimeoutSec <= 0 {
		c.Virtual.TimeoutSec = 30
	}
	if c.Virtual.LicenseCeiling <= 0 {
		c.Virtual.LicenseCeiling = 3
	}
	if c.Ingest.BatchSize <= 0 {
		c.Ingest.BatchSize = 100
	}
	if c.Ingest.DefaultCount <= 0 {
		c.Ingest.DefaultCount = 10000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.SearchStore.Addrs) == 0 {
		return fmt.Errorf("search_store.addrs is required")
	}
	if c.RecordStore.Table == "" {
		return fmt.Errorf("record_store.table is required")
	}
	if c.Encryption.MasterKey == "" {
		return fmt.Errorf("encryption.master_key is required")
	}
	if _, err := c.FieldTable(); err != nil {
		return fmt.Errorf("encryption.fields: %w", err)
	}
	return nil
}

// FieldTable builds the encryption field table from the configuration.
// With no fields configured the default registration is used.
func (c *Config) FieldTable() (*field.Table, error) {
	if len(c.Encryption.Fields) == 0 {
		return field.Default(), nil
	}
	specs := make([]field.Spec, 0, len(c.Encryption.Fields))
	for _, fc := range c.Encryption.Fields {
		classes := make([]field.Class, 0, len(fc.Classes))
		for _, cl := range fc.Classes {
			classes = append(classes, field.Class(cl))
		}
		specs = append(specs, field.Spec{
			Name:           fc.Name,
			Classes:        classes,
			MinQueryLength: fc.MinQueryLength,
			MaxQueryLength: fc.MaxQueryLength,
			MaxLength:      fc.MaxLength,
		})
	}
	return field.NewTable(specs)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
