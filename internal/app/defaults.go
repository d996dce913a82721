package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables read by the application. Secrets never live in the
// config file.
const (
	EnvConfigPath        = "COLLAB_CONFIG_PATH"
	EnvHome              = "COLLAB_HOME"
	EnvJWTSecret         = "COLLAB_JWT_SECRET"
	EnvArchivePassphrase = "COLLAB_ARCHIVE_PASSPHRASE"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - COLLAB_CONFIG_PATH: config file location (default: ~/.config/collab.toml)
//   - COLLAB_HOME: base directory for collab data (default: ~/.local/share/collab)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
		"env_file":    filepath.Join(baseDir, ".env"),
	}, nil
}

// LoadEnv reads KEY=value files into the process environment. Missing files
// are skipped and variables that are already set are never overridden, so
// the real environment always wins.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading env file %s: %w", p, err)
		}
	}
	return nil
}

// getConfigPath returns the config file path, checking COLLAB_CONFIG_PATH first,
// then falling back to the default ~/.config/collab.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "collab.toml"), nil
}

// getBaseDir returns the base directory for collab data, checking COLLAB_HOME first,
// then falling back to the XDG default ~/.local/share/collab.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "collab"), nil
}
