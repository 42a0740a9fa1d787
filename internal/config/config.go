// Package config provides configuration loading and management for the record sync engine.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/record-sync/internal/telemetry"
)

// EnvPrefix is the prefix for environment variables read through viper.
const EnvPrefix = "THV_RECORD_SYNC"

const (
	// LocalTypeSQLite keeps the local copy in a SQLite database file
	LocalTypeSQLite = "sqlite"

	// LocalTypeFile keeps the local copy as one JSON file per record
	LocalTypeFile = "file"

	// StoreTypeMemory keeps a store in process memory only
	StoreTypeMemory = "memory"

	// RemoteTypePostgres keeps the remote copy in PostgreSQL
	RemoteTypePostgres = "postgres"
)

// Defaults for the sync section.
const (
	DefaultDebounceDelay        = time.Second
	DefaultSelfChangeWindow     = 2 * time.Second
	DefaultSelfChangeGrace      = 2 * time.Second
	DefaultLocalChangeRetention = 10 * time.Second
	DefaultPeriodicInterval     = 5 * time.Minute
	DefaultStorageBatchWindow   = 100 * time.Millisecond
	DefaultTableName            = "records"
	DefaultReconnectBaseDelay   = time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultAPIAddress           = ":8080"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks; this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Sync      SyncConfig        `yaml:"sync"`
	Local     LocalConfig       `yaml:"local"`
	Remote    RemoteConfig      `yaml:"remote"`
	Identity  IdentityConfig    `yaml:"identity"`
	API       *APIConfig        `yaml:"api,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`

	// StatusDir, when set, mirrors the current sync status of each owner
	// to <StatusDir>/<owner>/status.json
	StatusDir string `yaml:"statusDir,omitempty"`
}

// SyncConfig holds the engine's timing knobs and the synchronized table.
// Durations are Go duration strings ("1s", "5m").
type SyncConfig struct {
	// Enabled is the initial enabled flag, used until a persisted value exists
	Enabled *bool `yaml:"enabled,omitempty"`

	// TableName is the record set being synchronized
	TableName string `yaml:"tableName,omitempty"`

	// DebounceDelay is the quiet period the queue waits for before running a sync
	DebounceDelay string `yaml:"debounceDelay,omitempty"`

	// SelfChangeWindow is how long after a local mutation a remote event is
	// treated as an echo of our own write
	SelfChangeWindow string `yaml:"selfChangeWindow,omitempty"`

	// SelfChangeGrace is how long the in-progress flag outlives a sync
	SelfChangeGrace string `yaml:"selfChangeGrace,omitempty"`

	// LocalChangeRetention is how long a recorded local mutation is remembered
	LocalChangeRetention string `yaml:"localChangeRetention,omitempty"`

	// PeriodicInterval is the period of the timer-driven sync
	PeriodicInterval string `yaml:"periodicInterval,omitempty"`

	// StorageBatchWindow coalesces bursts of local change notifications
	StorageBatchWindow string `yaml:"storageBatchWindow,omitempty"`

	Remote *RemoteSubscriptionConfig `yaml:"remote,omitempty"`
}

// RemoteSubscriptionConfig controls reconnection of the remote change subscription
type RemoteSubscriptionConfig struct {
	ReconnectBaseDelay   string `yaml:"reconnectBaseDelay,omitempty"`
	MaxReconnectAttempts int    `yaml:"maxReconnectAttempts,omitempty"`
}

// LocalConfig selects the local store implementation
type LocalConfig struct {
	// Type is one of sqlite, file or memory
	Type string `yaml:"type"`

	// Path is the SQLite database file or the record directory
	Path string `yaml:"path,omitempty"`
}

// RemoteConfig selects the remote store implementation
type RemoteConfig struct {
	// Type is one of postgres or memory
	Type string `yaml:"type"`

	Database *DatabaseConfig `yaml:"database,omitempty"`
}

// IdentityConfig configures the owner the engine syncs for
type IdentityConfig struct {
	// OwnerID is the signed-in owner. It may be overridden with THV_RECORD_SYNC_OWNER_ID.
	OwnerID string `yaml:"ownerId,omitempty"`
}

// APIConfig configures the control HTTP API
type APIConfig struct {
	Address string `yaml:"address,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// The file should contain only the password with optional trailing whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the minimum number of connections kept in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from THV_RECORD_SYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable", EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection string.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	), nil
}

// GetConnMaxLifetime returns the parsed connection lifetime, defaulting to 5 minutes
func (d *DatabaseConfig) GetConnMaxLifetime() time.Duration {
	return parseDurationOr(d.ConnMaxLifetime, 5*time.Minute)
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns an in-memory configuration with every default applied.
func Default() *Config {
	return &Config{
		Local:  LocalConfig{Type: StoreTypeMemory},
		Remote: RemoteConfig{Type: StoreTypeMemory},
	}
}

// GetAPIAddress returns the API listen address, using ":8080" if not specified
func (c *Config) GetAPIAddress() string {
	if c.API == nil || c.API.Address == "" {
		return DefaultAPIAddress
	}
	return c.API.Address
}

// Validate checks the configuration and reports every problem found
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if err := c.Sync.validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}

	switch c.Local.Type {
	case LocalTypeSQLite, LocalTypeFile:
		if c.Local.Path == "" {
			errs = append(errs, fmt.Errorf("local.path is required for type %s", c.Local.Type))
		}
	case StoreTypeMemory:
	case "":
		errs = append(errs, fmt.Errorf("local.type is required"))
	default:
		errs = append(errs, fmt.Errorf("local.type must be one of sqlite, file, memory: got %q", c.Local.Type))
	}

	switch c.Remote.Type {
	case RemoteTypePostgres:
		if err := c.Remote.Database.validate(); err != nil {
			errs = append(errs, fmt.Errorf("remote.database: %w", err))
		}
	case StoreTypeMemory:
	case "":
		errs = append(errs, fmt.Errorf("remote.type is required"))
	default:
		errs = append(errs, fmt.Errorf("remote.type must be one of postgres, memory: got %q", c.Remote.Type))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func (d *DatabaseConfig) validate() error {
	if d == nil {
		return fmt.Errorf("database configuration is required")
	}
	if d.Host == "" {
		return fmt.Errorf("host is required")
	}
	if d.Port <= 0 {
		return fmt.Errorf("port must be positive")
	}
	if d.User == "" {
		return fmt.Errorf("user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database is required")
	}
	if d.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(d.ConnMaxLifetime); err != nil {
			return fmt.Errorf("connMaxLifetime must be a valid duration: %w", err)
		}
	}
	return nil
}

func (s *SyncConfig) validate() error {
	durations := map[string]string{
		"debounceDelay":        s.DebounceDelay,
		"selfChangeWindow":     s.SelfChangeWindow,
		"selfChangeGrace":      s.SelfChangeGrace,
		"localChangeRetention": s.LocalChangeRetention,
		"periodicInterval":     s.PeriodicInterval,
		"storageBatchWindow":   s.StorageBatchWindow,
	}
	if s.Remote != nil {
		durations["remote.reconnectBaseDelay"] = s.Remote.ReconnectBaseDelay
		if s.Remote.MaxReconnectAttempts < 0 {
			return fmt.Errorf("remote.maxReconnectAttempts must not be negative")
		}
	}

	for field, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s must be a valid duration (e.g., '1s', '5m'): %w", field, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", field)
		}
	}

	if strings.ContainsAny(s.TableName, ": ") {
		return fmt.Errorf("tableName must not contain ':' or spaces")
	}

	return nil
}

// IsEnabled returns the configured initial enabled flag, defaulting to true
func (s *SyncConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// GetTableName returns the table name, using "records" if not specified
func (s *SyncConfig) GetTableName() string {
	if s.TableName == "" {
		return DefaultTableName
	}
	return s.TableName
}

// GetDebounceDelay returns the debounce delay, defaulting to one second
func (s *SyncConfig) GetDebounceDelay() time.Duration {
	return parseDurationOr(s.DebounceDelay, DefaultDebounceDelay)
}

// GetSelfChangeWindow returns the remote echo window, defaulting to two seconds
func (s *SyncConfig) GetSelfChangeWindow() time.Duration {
	return parseDurationOr(s.SelfChangeWindow, DefaultSelfChangeWindow)
}

// GetSelfChangeGrace returns the post-sync grace delay, defaulting to two seconds
func (s *SyncConfig) GetSelfChangeGrace() time.Duration {
	return parseDurationOr(s.SelfChangeGrace, DefaultSelfChangeGrace)
}

// GetLocalChangeRetention returns how long a local mutation marker is kept
func (s *SyncConfig) GetLocalChangeRetention() time.Duration {
	return parseDurationOr(s.LocalChangeRetention, DefaultLocalChangeRetention)
}

// GetPeriodicInterval returns the periodic sync interval, defaulting to five minutes
func (s *SyncConfig) GetPeriodicInterval() time.Duration {
	return parseDurationOr(s.PeriodicInterval, DefaultPeriodicInterval)
}

// GetStorageBatchWindow returns the local change micro-batch window
func (s *SyncConfig) GetStorageBatchWindow() time.Duration {
	return parseDurationOr(s.StorageBatchWindow, DefaultStorageBatchWindow)
}

// GetReconnectBaseDelay returns the base delay of the remote reconnect backoff
func (s *SyncConfig) GetReconnectBaseDelay() time.Duration {
	if s.Remote == nil {
		return DefaultReconnectBaseDelay
	}
	return parseDurationOr(s.Remote.ReconnectBaseDelay, DefaultReconnectBaseDelay)
}

// GetMaxReconnectAttempts returns how many reconnects are tried before giving up
func (s *SyncConfig) GetMaxReconnectAttempts() int {
	if s.Remote == nil || s.Remote.MaxReconnectAttempts == 0 {
		return DefaultMaxReconnectAttempts
	}
	return s.Remote.MaxReconnectAttempts
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
