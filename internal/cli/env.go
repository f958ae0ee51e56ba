package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds command defaults read from the environment. Explicit flags
// override them.
type Env struct {
	Format   string `env:"TICKCORE_FORMAT" envDefault:"text"`
	Verbose  bool   `env:"TICKCORE_VERBOSE"`
	Database string `env:"TICKCORE_DB"`
	Listen   string `env:"TICKCORE_LISTEN"`
}

// ParseEnv loads Env from environment variables.
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}
