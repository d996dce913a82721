package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("uses env vars when set", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/custom/config.toml")
		t.Setenv(EnvHome, "/custom/collab")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		if defaults["config_path"] != "/custom/config.toml" {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], "/custom/config.toml")
		}
		if defaults["base_dir"] != "/custom/collab" {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], "/custom/collab")
		}
		if defaults["log_dir"] != "/custom/collab/log" {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], "/custom/collab/log")
		}
		if defaults["env_file"] != "/custom/collab/.env" {
			t.Errorf("env_file = %q, want %q", defaults["env_file"], "/custom/collab/.env")
		}
	})

	t.Run("falls back to home dir defaults", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		t.Setenv(EnvHome, "")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}

		homeDir, _ := os.UserHomeDir()

		wantConfig := filepath.Join(homeDir, ".config", "collab.toml")
		if defaults["config_path"] != wantConfig {
			t.Errorf("config_path = %q, want %q", defaults["config_path"], wantConfig)
		}

		wantBase := filepath.Join(homeDir, ".local", "share", "collab")
		if defaults["base_dir"] != wantBase {
			t.Errorf("base_dir = %q, want %q", defaults["base_dir"], wantBase)
		}

		wantLog := filepath.Join(wantBase, "log")
		if defaults["log_dir"] != wantLog {
			t.Errorf("log_dir = %q, want %q", defaults["log_dir"], wantLog)
		}
	})
}

func TestLoadEnv(t *testing.T) {
	t.Run("loads variables from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("COLLAB_TEST_LOADENV=from-file\n"), 0600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("COLLAB_TEST_LOADENV", "")
		os.Unsetenv("COLLAB_TEST_LOADENV")

		if err := LoadEnv(path); err != nil {
			t.Fatalf("LoadEnv() error = %v", err)
		}
		if got := os.Getenv("COLLAB_TEST_LOADENV"); got != "from-file" {
			t.Errorf("COLLAB_TEST_LOADENV = %q, want from-file", got)
		}
	})

	t.Run("real environment wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("COLLAB_TEST_LOADENV=from-file\n"), 0600); err != nil {
			t.Fatal(err)
		}
		t.Setenv("COLLAB_TEST_LOADENV", "from-env")

		if err := LoadEnv(path); err != nil {
			t.Fatalf("LoadEnv() error = %v", err)
		}
		if got := os.Getenv("COLLAB_TEST_LOADENV"); got != "from-env" {
			t.Errorf("COLLAB_TEST_LOADENV = %q, want from-env", got)
		}
	})

	t.Run("missing files are skipped", func(t *testing.T) {
		if err := LoadEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
			t.Errorf("LoadEnv() error = %v, want nil", err)
		}
	})
}
