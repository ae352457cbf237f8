package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBaseDirHonorsEnvOverride(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)
	got, err := BaseDir()
	if err != nil {
		t.Fatalf("base dir: %v", err)
	}
	if got != home {
		t.Fatalf("expected %s, got %s", home, got)
	}
}

func TestProfileFilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)
	got, err := ProfileFilePath()
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "config.json") {
		t.Fatalf("unexpected path: %s", got)
	}
}

func TestLoadCreatesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UI.RefreshSeconds != 2 {
		t.Fatalf("unexpected refresh: %d", cfg.UI.RefreshSeconds)
	}
	if cfg.Download.BaseURL != DefaultReleaseBaseURL {
		t.Fatalf("unexpected base url: %s", cfg.Download.BaseURL)
	}
	if _, err := os.Stat(filepath.Join(home, "settings.yaml")); err != nil {
		t.Fatalf("defaults must be written on first load: %v", err)
	}
}

func TestLoadNormalizesValues(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)
	content := strings.Join([]string{
		"ui:",
		"  refresh_seconds: 0",
		"download:",
		"  base_url: \"\"",
		"",
	}, "\n")
	if err := os.WriteFile(filepath.Join(home, "settings.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UI.RefreshSeconds != 2 {
		t.Fatalf("zero refresh must normalize, got %d", cfg.UI.RefreshSeconds)
	}
	if cfg.Download.BaseURL != DefaultReleaseBaseURL {
		t.Fatalf("empty base url must normalize, got %q", cfg.Download.BaseURL)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	home := t.TempDir()
	t.Setenv(EnvHome, home)
	if err := os.WriteFile(filepath.Join(home, "settings.yaml"), []byte("ui: [broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvHome, t.TempDir())
	cfg := Default()
	cfg.UI.RefreshSeconds = 5
	cfg.Download.BaseURL = "https://mirror.example.com/cloudflared"
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != cfg {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, cfg)
	}
}
