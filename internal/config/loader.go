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

// Load assembles the Config the process runs with. New supplies the
// defaults, a YAML file named by TIDYBOARD_CONFIG overlays them, and
// TIDYBOARD_* environment variables overlay both.
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	// File layer, only when pointed at one
	if path := os.Getenv("TIDYBOARD_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: TIDYBOARD_ADDR, TIDYBOARD_QUEUE_SIZE, ...
	// TIDYBOARD_QUEUE_SIZE becomes the flat key queue_size; underscores
	// stay put so the keys line up with the koanf struct tags.
	envProvider := env.Provider("TIDYBOARD_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "tidyboard_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Decode onto a copy of the defaults
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Basic validation
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: addr is required", ErrInvalidConfig)
	}
	if cfg.MaxLeaderboardLimit < 1 {
		return nil, fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	return &cfg, nil
}
