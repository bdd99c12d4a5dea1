package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.ListenAddr() != "127.0.0.1:37780" {
		t.Errorf("ListenAddr = %q, want 127.0.0.1:37780", cfg.ListenAddr())
	}
	if cfg.Layout.Radius != 280 {
		t.Errorf("radius = %v, want 280", cfg.Layout.Radius)
	}
	if cfg.Timing.ExpandDelay() != 100*time.Millisecond {
		t.Errorf("expand delay = %v, want 100ms", cfg.Timing.ExpandDelay())
	}
	if cfg.Timing.OrbitDelay() != 1200*time.Millisecond {
		t.Errorf("orbit delay = %v, want 1200ms", cfg.Timing.OrbitDelay())
	}
	if cfg.Timing.SearchPulse() != 2*time.Second {
		t.Errorf("search pulse = %v, want 2s", cfg.Timing.SearchPulse())
	}
	if cfg.Provider.PollInterval() != 0 {
		t.Errorf("poll interval = %v, want disabled", cfg.Provider.PollInterval())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("NEURALMAP_PROVIDER_URL", "")
	t.Setenv("NEURALMAP_DB", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.URL != Default().Provider.URL {
		t.Errorf("provider url = %q, want default", cfg.Provider.URL)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("NEURALMAP_PROVIDER_URL", "")
	t.Setenv("NEURALMAP_DB", "")

	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
port = 9000
allowed_origins = ["http://localhost:5173"]

[provider]
url = "http://memory.internal:8080"
poll_interval_ms = 30000

[layout]
jitter = false

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("allowed origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Provider.PollInterval() != 30*time.Second {
		t.Errorf("poll interval = %v, want 30s", cfg.Provider.PollInterval())
	}
	if cfg.Layout.Jitter {
		t.Error("jitter should be off")
	}
	// untouched keys keep defaults
	if cfg.Layout.Radius != 280 || cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("defaults lost: radius=%v bind=%q", cfg.Layout.Radius, cfg.Server.Bind)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.toml")
	if err := os.WriteFile(path, []byte("[server]\nport = 4242\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NEURALMAP_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4242 {
		t.Errorf("port = %d, want 4242", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NEURALMAP_PROVIDER_URL", "http://override:1234")
	t.Setenv("NEURALMAP_DB", "/tmp/override.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.URL != "http://override:1234" {
		t.Errorf("provider url = %q", cfg.Provider.URL)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[server\nport = "), 0o644)

	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Provider.URL = "not a url"
	cfg.Log.Format = "xml"
	cfg.Layout.Radius = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"Server.Port", "Provider.URL", "Log.Format", "Layout.Radius"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("NEURALMAP_PROVIDER_URL", "")
	t.Setenv("NEURALMAP_DB", "")

	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Timing.OrbitDelayMs = 900
	cfg.Layout.Seed = 7

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Timing.OrbitDelayMs != 900 || loaded.Layout.Seed != 7 {
		t.Errorf("loaded = %+v", loaded)
	}
}
