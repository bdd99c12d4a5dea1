package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config holds all neuralmap configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Provider ProviderConfig `toml:"provider"`
	Database DatabaseConfig `toml:"database"`
	Layout   LayoutConfig   `toml:"layout"`
	Timing   TimingConfig   `toml:"timing"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Bind           string   `toml:"bind" validate:"required"`
	Port           int      `toml:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type ProviderConfig struct {
	URL            string `toml:"url" validate:"required,url"`
	TimeoutMs      int    `toml:"timeout_ms" validate:"min=100"`
	PollIntervalMs int    `toml:"poll_interval_ms" validate:"min=0"` // 0 disables polling
}

type DatabaseConfig struct {
	Path          string `toml:"path"` // empty resolves via store.DefaultDBPath()
	KeepSnapshots int    `toml:"keep_snapshots" validate:"min=1"`
}

type LayoutConfig struct {
	Radius         float64 `toml:"radius" validate:"gt=0"`
	VelocityMin    float64 `toml:"velocity_min" validate:"gt=0"` // deg/ms
	VelocitySpread float64 `toml:"velocity_spread" validate:"gte=0"`
	SizeMin        float64 `toml:"size_min" validate:"gt=0"`
	SizeSpread     float64 `toml:"size_spread" validate:"gte=0"`
	Jitter         bool    `toml:"jitter"`
	Seed           int64   `toml:"seed"` // 0 seeds from the clock
}

type TimingConfig struct {
	ExpandDelayMs  int `toml:"expand_delay_ms" validate:"min=1"`
	OrbitDelayMs   int `toml:"orbit_delay_ms" validate:"min=1"`
	SearchPulseMs  int `toml:"search_pulse_ms" validate:"min=1"`
	TickIntervalMs int `toml:"tick_interval_ms" validate:"min=1,max=1000"`
}

type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=json console"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Provider: ProviderConfig{
			URL:       "http://localhost:5000",
			TimeoutMs: 5000,
		},
		Database: DatabaseConfig{
			KeepSnapshots: 50,
		},
		Layout: LayoutConfig{
			Radius:         280,
			VelocityMin:    0.00028,
			VelocitySpread: 0.00004,
			SizeMin:        42,
			SizeSpread:     6,
			Jitter:         true,
		},
		Timing: TimingConfig{
			ExpandDelayMs:  100,
			OrbitDelayMs:   1200,
			SearchPulseMs:  2000,
			TickIntervalMs: 16,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (p ProviderConfig) Timeout() time.Duration      { return ms(p.TimeoutMs) }
func (p ProviderConfig) PollInterval() time.Duration { return ms(p.PollIntervalMs) }
func (t TimingConfig) ExpandDelay() time.Duration    { return ms(t.ExpandDelayMs) }
func (t TimingConfig) OrbitDelay() time.Duration     { return ms(t.OrbitDelayMs) }
func (t TimingConfig) SearchPulse() time.Duration    { return ms(t.SearchPulseMs) }
func (t TimingConfig) TickInterval() time.Duration   { return ms(t.TickIntervalMs) }

// DefaultPath returns ~/.neuralmap/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".neuralmap", "config.toml"), nil
}

// Load reads the config at path. An empty path falls back to
// NEURALMAP_CONFIG, then DefaultPath. A missing file yields defaults.
// Environment overrides are applied last and the result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("NEURALMAP_CONFIG")
	}
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NEURALMAP_PROVIDER_URL"); v != "" {
		c.Provider.URL = v
	}
	if v := os.Getenv("NEURALMAP_DB"); v != "" {
		c.Database.Path = v
	}
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldError(e))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func fieldError(e validator.FieldError) string {
	field := strings.TrimPrefix(e.Namespace(), "Config.")
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "url":
		return fmt.Sprintf("%s must be a URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
