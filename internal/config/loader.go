package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "CRAWLPLAN_"
	envFileVar = "CRAWLPLAN_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CRAWLPLAN_CONFIG is set
//  3. env (prefix CRAWLPLAN_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CRAWLPLAN_DEFAULT_LIMIT -> default_limit. Underscores are kept so the
	// flat keys match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The file path itself is not a config key.
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DefaultLatitude < -90 || c.DefaultLatitude > 90:
		return fmt.Errorf("%w: default_latitude out of range", ErrInvalidConfig)
	case c.DefaultLongitude < -180 || c.DefaultLongitude > 180:
		return fmt.Errorf("%w: default_longitude out of range", ErrInvalidConfig)
	case c.DefaultRadiusMeters <= 0:
		return fmt.Errorf("%w: default_radius_meters must be positive", ErrInvalidConfig)
	case c.DefaultLimit < 1:
		return fmt.Errorf("%w: default_limit must be at least 1", ErrInvalidConfig)
	case c.DefaultPriceMin < 0 || c.DefaultPriceMax > 4 || c.DefaultPriceMin > c.DefaultPriceMax:
		return fmt.Errorf("%w: default price range must satisfy 0 <= min <= max <= 4", ErrInvalidConfig)
	case c.CollaboratorTimeoutMS <= 0:
		return fmt.Errorf("%w: collaborator_timeout_ms must be positive", ErrInvalidConfig)
	case c.MailboxSize < 1:
		return fmt.Errorf("%w: mailbox_size must be at least 1", ErrInvalidConfig)
	case c.MaxSessions < 1:
		return fmt.Errorf("%w: max_sessions must be at least 1", ErrInvalidConfig)
	case c.SimLatencyMinMS < 0 || c.SimLatencyMaxMS < c.SimLatencyMinMS:
		return fmt.Errorf("%w: simulated latency bounds are inverted", ErrInvalidConfig)
	}
	return nil
}
