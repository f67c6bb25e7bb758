// Package config содержит логику чтения конфигурации сервиса GastoSmart.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// DefaultMaxContribution — потолок суммы одного взноса в песо.
const DefaultMaxContribution int64 = 1000000000

// Config содержит параметры конфигурации сервиса GastoSmart.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	NotifierAddress string `env:"NOTIFIER_ADDRESS"`
	MaxContribution int64  `env:"MAX_CONTRIBUTION"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envNotifierAddress := cfg.NotifierAddress
	envMaxContribution := cfg.MaxContribution

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.NotifierAddress, "n", "", "notification service address")
	flag.Int64Var(&cfg.MaxContribution, "m", DefaultMaxContribution, "maximum single contribution amount")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envNotifierAddress != "" {
		cfg.NotifierAddress = envNotifierAddress
	}
	if envMaxContribution != 0 {
		cfg.MaxContribution = envMaxContribution
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.MaxContribution <= 0 {
		cfg.MaxContribution = DefaultMaxContribution
	}

	return cfg, nil
}
