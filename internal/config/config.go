// Package config loads livecheck settings from the storage directory.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. LIVECHECK_SCAN_RETENTIONDAYS.
const EnvPrefix = "LIVECHECK"

// FileName is the file Save writes inside the storage directory.
const FileName = "config.toml"

// Config is the complete client configuration
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server" toml:"server" mapstructure:"server"`
	Scan    ScanConfig    `json:"scan" yaml:"scan" toml:"scan" mapstructure:"scan"`
	Storage StorageConfig `json:"storage" yaml:"storage" toml:"storage" mapstructure:"storage"`
	Logging LoggingConfig `json:"logging" yaml:"logging" toml:"logging" mapstructure:"logging"`
}

// ServerConfig locates the analysis service endpoints
type ServerConfig struct {
	BaseURL          string `json:"baseURL" yaml:"baseURL" toml:"baseURL" mapstructure:"baseURL"`
	AnalyzePath      string `json:"analyzePath" yaml:"analyzePath" toml:"analyzePath" mapstructure:"analyzePath"`
	RefreshPath      string `json:"refreshPath" yaml:"refreshPath" toml:"refreshPath" mapstructure:"refreshPath"`
	WriteOffPath     string `json:"writeOffPath" yaml:"writeOffPath" toml:"writeOffPath" mapstructure:"writeOffPath"`
	ReasonsPath      string `json:"reasonsPath" yaml:"reasonsPath" toml:"reasonsPath" mapstructure:"reasonsPath"`
	LicensePath      string `json:"licensePath" yaml:"licensePath" toml:"licensePath" mapstructure:"licensePath"`
	TimeoutMs        int    `json:"timeoutMs" yaml:"timeoutMs" toml:"timeoutMs" mapstructure:"timeoutMs"`
	CompressRequests bool   `json:"compressRequests" yaml:"compressRequests" toml:"compressRequests" mapstructure:"compressRequests"`
	// Source identifies this client to the token refresh endpoint
	Source string `json:"source" yaml:"source" toml:"source" mapstructure:"source"`
}

// ScanConfig controls the scan pipeline and diagnostics
type ScanConfig struct {
	RetentionDays           int      `json:"retentionDays" yaml:"retentionDays" toml:"retentionDays" mapstructure:"retentionDays"`
	OnlyBlockers            bool     `json:"onlyBlockers" yaml:"onlyBlockers" toml:"onlyBlockers" mapstructure:"onlyBlockers"`
	AutoScanOnOpen          bool     `json:"autoScanOnOpen" yaml:"autoScanOnOpen" toml:"autoScanOnOpen" mapstructure:"autoScanOnOpen"`
	InformationalIssueTypes []string `json:"informationalIssueTypes" yaml:"informationalIssueTypes" toml:"informationalIssueTypes" mapstructure:"informationalIssueTypes"`
}

// StorageConfig bounds the local cache
type StorageConfig struct {
	MaxValueBytes int `json:"maxValueBytes" yaml:"maxValueBytes" toml:"maxValueBytes" mapstructure:"maxValueBytes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" toml:"level" mapstructure:"level"`
	Format     string `json:"format" yaml:"format" toml:"format" mapstructure:"format"`
	MaxSize    string `json:"maxSize" yaml:"maxSize" toml:"maxSize" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups" toml:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			AnalyzePath:  "/api/v1/livecheck/analyze",
			RefreshPath:  "/api/v1/auth/refresh",
			WriteOffPath: "/api/v1/livecheck/writeoff",
			ReasonsPath:  "/api/v1/livecheck/writeoff/reasons",
			LicensePath:  "/api/v1/license",
			TimeoutMs:    30000,
			Source:       "livecheck-go",
		},
		Scan: ScanConfig{
			RetentionDays:           30,
			InformationalIssueTypes: []string{},
		},
		Storage: StorageConfig{
			MaxValueBytes: 1 << 20,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "human",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// defaults flattens DefaultConfig into viper keys.
func defaults() map[string]any {
	d := DefaultConfig()
	return map[string]any{
		"server.baseURL":               d.Server.BaseURL,
		"server.analyzePath":           d.Server.AnalyzePath,
		"server.refreshPath":           d.Server.RefreshPath,
		"server.writeOffPath":          d.Server.WriteOffPath,
		"server.reasonsPath":           d.Server.ReasonsPath,
		"server.licensePath":           d.Server.LicensePath,
		"server.timeoutMs":             d.Server.TimeoutMs,
		"server.compressRequests":      d.Server.CompressRequests,
		"server.source":                d.Server.Source,
		"scan.retentionDays":           d.Scan.RetentionDays,
		"scan.onlyBlockers":            d.Scan.OnlyBlockers,
		"scan.autoScanOnOpen":          d.Scan.AutoScanOnOpen,
		"scan.informationalIssueTypes": d.Scan.InformationalIssueTypes,
		"storage.maxValueBytes":        d.Storage.MaxValueBytes,
		"logging.level":                d.Logging.Level,
		"logging.format":               d.Logging.Format,
		"logging.maxSize":              d.Logging.MaxSize,
		"logging.maxBackups":           d.Logging.MaxBackups,
	}
}

// Keys lists every settable configuration key.
func Keys() []string {
	keys := make([]string, 0, len(defaults()))
	for k := range defaults() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newViper(dir string) *viper.Viper {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetConfigName("config")
	v.AddConfigPath(dir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readInto(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.Scan.InformationalIssueTypes == nil {
		cfg.Scan.InformationalIssueTypes = []string{}
	}
	return &cfg, nil
}

// LoadConfig loads <dir>/config.{toml,json,yaml} with LIVECHECK_* overrides.
// A missing file yields the defaults.
func LoadConfig(dir string) (*Config, error) {
	cfg, err := readInto(newViper(dir))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetValue returns the effective value of a single key.
func GetValue(dir, key string) (any, error) {
	if !knownKey(key) {
		return nil, &ConfigError{Field: key, Message: "unknown key"}
	}
	v := newViper(dir)
	if _, err := readInto(v); err != nil {
		return nil, err
	}
	return v.Get(key), nil
}

// SetValue sets one key, validates the result and saves it as TOML.
func SetValue(dir, key, value string) (*Config, error) {
	if !knownKey(key) {
		return nil, &ConfigError{Field: key, Message: "unknown key"}
	}
	v := newViper(dir)
	if _, err := readInto(v); err != nil {
		return nil, err
	}
	v.Set(key, value)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Field: key, Message: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(dir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func knownKey(key string) bool {
	for k := range defaults() {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// Save writes the configuration to <dir>/config.toml
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, FileName))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return f.Sync()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.BaseURL != "" {
		u, err := url.Parse(c.Server.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ConfigError{Field: "server.baseURL", Message: "must be an absolute URL"}
		}
	}
	if c.Server.TimeoutMs <= 0 {
		return &ConfigError{Field: "server.timeoutMs", Message: "must be positive"}
	}
	if c.Scan.RetentionDays < 0 {
		return &ConfigError{Field: "scan.retentionDays", Message: "must not be negative"}
	}
	if c.Storage.MaxValueBytes <= 0 {
		return &ConfigError{Field: "storage.maxValueBytes", Message: "must be positive"}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
