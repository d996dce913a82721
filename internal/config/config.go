package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for the collab server.
type Config struct {
	NodeID     string           `toml:"node_id"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // debug, info, warn, or error
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Archive    ArchiveConfig    `toml:"archive"`
	Encryption EncryptionConfig `toml:"encryption"`
	Dispatch   DispatchConfig   `toml:"dispatch"`
	Auth       AuthConfig       `toml:"auth"`
	Collab     CollabConfig     `toml:"collab"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins,omitempty"` // websocket origins; empty allows same-origin only
}

// DatabaseConfig represents configuration for the content store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ArchiveConfig represents configuration for the version snapshot store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", or "s3"

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible endpoint, e.g. MinIO

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt archived
// snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age", or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// DispatchConfig selects how committed events are fanned out.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DispatchConfig struct {
	Type       string `toml:"type"`        // "hub" (default), "redis", or "nop"
	QueueSize  int    `toml:"queue_size"`  // outbox capacity; defaults to 1024
	MaxRetries int    `toml:"max_retries"` // publish attempts per event; defaults to 3

	// Redis-specific fields (only used when Type == "redis")
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
}

// AuthConfig configures bearer token verification. The signing secret is
// read from the environment, never from the config file.
type AuthConfig struct {
	Issuer          string `toml:"issuer"`
	TokenTTLMinutes int    `toml:"token_ttl_minutes"` // lifetime of tokens minted by `collab token`
}

// CollabConfig tunes the collaboration service.
type CollabConfig struct {
	LockTimeoutMillis     int    `toml:"lock_timeout_ms"`
	PresenceWindowSeconds int    `toml:"presence_window_seconds"`
	DefaultRole           string `toml:"default_role"` // role every space member gets on new content
}

// LockTimeout returns the configured lock timeout, or zero when unset.
func (c CollabConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMillis) * time.Millisecond
}

// PresenceWindow returns the configured presence window, or zero when unset.
func (c CollabConfig) PresenceWindow() time.Duration {
	return time.Duration(c.PresenceWindowSeconds) * time.Second
}

// NewConfig creates a new Config with the provided values and defaults for
// every section.
func NewConfig(nodeID, baseDir string) *Config {
	return &Config{
		NodeID:   nodeID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		LogLevel: "info",
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Archive: ArchiveConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "archive"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "collab.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "collab.key"),
		},
		Dispatch: DispatchConfig{Type: "hub", QueueSize: 1024, MaxRetries: 3},
		Auth:     AuthConfig{Issuer: "collab", TokenTTLMinutes: 60},
		Collab: CollabConfig{
			LockTimeoutMillis:     5000,
			PresenceWindowSeconds: 300,
			DefaultRole:           "editor",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. An existing file is never
// overwritten.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
