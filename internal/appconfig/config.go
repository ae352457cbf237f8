// Package appconfig resolves the application base directory and manages
// app-level settings (settings.yaml). Profile state lives in config.json in
// the same directory; its contents are owned by internal/profile.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvHome overrides the base directory when set. Tests rely on it to avoid
// touching the directory the binary was installed to.
const EnvHome = "CFTUNNEL_HOME"

// DefaultReleaseBaseURL is where platform-specific cloudflared assets are
// fetched from when settings.yaml does not override it.
const DefaultReleaseBaseURL = "https://github.com/cloudflare/cloudflared/releases/latest/download"

// UIConfig contains TUI display settings.
type UIConfig struct {
	RefreshSeconds int `yaml:"refresh_seconds"`
}

// DownloadConfig controls cloudflared binary acquisition.
type DownloadConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Config holds application-level settings, distinct from profile state.
type Config struct {
	UI       UIConfig       `yaml:"ui"`
	Download DownloadConfig `yaml:"download"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		UI:       UIConfig{RefreshSeconds: 2},
		Download: DownloadConfig{BaseURL: DefaultReleaseBaseURL},
	}
}

// BaseDir returns the directory holding the profile store, settings, journal,
// and a bundled cloudflared binary if present. It is the directory containing
// the running executable, overridable via CFTUNNEL_HOME.
func BaseDir() (string, error) {
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}
	exe, err := os.Executable()
	if err != nil {
		// Running under "go run" or a stripped environment; fall back to
		// the working directory rather than failing every operation.
		wd, wderr := os.Getwd()
		if wderr != nil {
			return "", fmt.Errorf("resolve base dir: %w", err)
		}
		return wd, nil
	}
	return filepath.Dir(exe), nil
}

// ProfileFilePath returns the full path to config.json, the profile store.
func ProfileFilePath() (string, error) {
	d, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.json"), nil
}

// Load reads settings.yaml from the base directory, creating it with
// defaults when missing.
func Load() (Config, error) {
	d, err := BaseDir()
	if err != nil {
		return Config{}, err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return Config{}, err
	}
	path := filepath.Join(d, "settings.yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.UI.RefreshSeconds <= 0 {
		cfg.UI.RefreshSeconds = 2
	}
	if cfg.Download.BaseURL == "" {
		cfg.Download.BaseURL = DefaultReleaseBaseURL
	}
	return cfg, nil
}

// Save writes settings.yaml to the base directory.
func Save(cfg Config) error {
	d, err := BaseDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d, "settings.yaml"), b, 0o644)
}
