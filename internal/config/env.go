package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Environment overrides, applied after config.toml.
const (
	EnvBaseURL        = "PLATED_BASE_URL"
	EnvAuthMode       = "PLATED_AUTH_MODE"
	EnvRequestTimeout = "PLATED_REQUEST_TIMEOUT"
	EnvProfile        = "PLATED_PROFILE"
)

// Resolve builds the effective configuration: config.toml at path (defaults
// if the file is missing), then variables from envFile (if present), then the
// process environment. The result is validated.
func Resolve(path, envFile string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if envFile != "" {
		// godotenv does not override variables already set in the environment.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvBaseURL); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := os.LookupEnv(EnvAuthMode); ok && v != "" {
		cfg.AuthMode = AuthMode(v)
	}
	if v, ok := os.LookupEnv(EnvProfile); ok && v != "" {
		cfg.DefaultProfile = v
	}
	if v, ok := os.LookupEnv(EnvRequestTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		cfg.RequestTimeout = Duration{d}
	}
	return nil
}
