// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/epidemicexpress/server/internal/domain/rules"
	"github.com/epidemicexpress/server/internal/platform/optimization"
)

// Config is the full server configuration. Every field can be set from an
// EPIDEMIC_* environment variable; rule constants use EPIDEMIC_RULES_*.
type Config struct {
	Addr        string        `env:"EPIDEMIC_ADDR" envDefault:":8080"`
	DBPath      string        `env:"EPIDEMIC_DB_PATH" envDefault:"data/epidemic.db"`
	Profile     string        `env:"EPIDEMIC_PROFILE" envDefault:"default"`
	MaxSessions int           `env:"EPIDEMIC_MAX_SESSIONS" envDefault:"1024"`
	SessionTTL  time.Duration `env:"EPIDEMIC_SESSION_TTL" envDefault:"30m"`
	// Seed fixes the seed of the first game; later games count up from it.
	// Zero draws every seed from crypto/rand.
	Seed  int64         `env:"EPIDEMIC_SEED" envDefault:"0"`
	Rules rules.Ruleset `envPrefix:"EPIDEMIC_RULES_"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the configuration, starting the rules from rules.Default, and
// validates it.
func Load() (Config, error) {
	cfg := Config{Rules: rules.Default()}
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c Config) Validate() error {
	if c.MaxSessions <= 0 {
		return fmt.Errorf("EPIDEMIC_MAX_SESSIONS must be positive, got %d", c.MaxSessions)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("EPIDEMIC_SESSION_TTL must not be negative, got %s", c.SessionTTL)
	}
	if _, err := optimization.ByName(c.Profile); err != nil {
		return fmt.Errorf("EPIDEMIC_PROFILE: %w", err)
	}
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("EPIDEMIC_RULES: %w", err)
	}
	return nil
}

// Tuning returns the optimization profile named by Profile.
func (c Config) Tuning() *optimization.Config {
	cfg, err := optimization.ByName(c.Profile)
	if err != nil {
		return optimization.DefaultConfig()
	}
	return cfg
}

// Exitf reports a startup failure of one of the commands on stderr and exits
// with status 1. Callers prefix the message with the command name.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
