package profile

import "github.com/matheus3301/plated/internal/config"

const DefaultName = "main"

// Resolve picks the active profile: the --profile flag wins, then
// PLATED_PROFILE (process environment or .env), then default_profile from
// config.toml. An unreadable or invalid configuration yields DefaultName.
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg, err := config.Resolve(ConfigPath(), EnvPath()); err == nil && cfg.DefaultProfile != "" {
		return cfg.DefaultProfile
	}
	return DefaultName
}
