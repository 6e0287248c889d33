package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// AuthMode selects how the remote client treats auth failures.
type AuthMode string

const (
	// AuthOnline clears the credential and redirects to sign-in on 401/403.
	AuthOnline AuthMode = "online"
	// AuthOffline treats 401/403 like an unreachable backend and serves fallback data.
	AuthOffline AuthMode = "offline"
)

// Duration is a time.Duration that round-trips through TOML as a string ("10s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Verification configures the proof-of-cook verification policy used when
// the backend cannot verify a proof itself.
type Verification struct {
	Policy      string  `toml:"policy" validate:"oneof=seeded score"`
	Seed        int64   `toml:"seed"`
	SuccessRate float64 `toml:"success_rate" validate:"gte=0,lte=1"`
	Threshold   float64 `toml:"threshold" validate:"gte=0,lte=1"`
}

// Config represents the global ~/.plated/config.toml.
type Config struct {
	DefaultProfile string       `toml:"default_profile"`
	BaseURL        string       `toml:"base_url" validate:"required,url"`
	AuthMode       AuthMode     `toml:"auth_mode" validate:"oneof=online offline"`
	RequestTimeout Duration     `toml:"request_timeout"`
	Verification   Verification `toml:"verification"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		BaseURL:        "http://localhost:5000/api",
		AuthMode:       AuthOnline,
		RequestTimeout: Duration{10 * time.Second},
		Verification: Verification{
			Policy:      "score",
			SuccessRate: 0.8,
			Threshold:   0.75,
		},
	}
}

// Load reads config from the given path. A missing file is an error
// wrapping fs.ErrNotExist; Resolve maps it to Default. Keys absent from
// the file keep their Default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("invalid config: request_timeout must be positive")
	}
	return nil
}

// Offline reports whether the client runs in offline/demo mode.
func (c *Config) Offline() bool {
	return c.AuthMode == AuthOffline
}
