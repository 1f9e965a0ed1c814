// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Telemetry struct {
	OTLPEndpoint   string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"0.1.0"`
}

type POS struct {
	Port           string        `env:"PORT" envDefault:"8090"`
	TerminalID     string        `env:"POS_TERMINAL_ID" envDefault:"till-1"`
	SalesURL       string        `env:"SALES_SERVICE_URL,required"`
	CartFile       string        `env:"POS_CART_FILE" envDefault:"data/cart.json"`
	RedisURL       string        `env:"REDIS_URL"`
	RequestTimeout time.Duration `env:"POS_BACKEND_TIMEOUT" envDefault:"10s"`
	Telemetry
}

type Sales struct {
	Port         string   `env:"PORT" envDefault:"8081"`
	PostgresURL  string   `env:"POSTGRES_URL,required"`
	SearchPath   string   `env:"POSTGRES_SEARCH_PATH" envDefault:"sales,catalog"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic        string   `env:"SALES_COMPLETED_TOPIC" envDefault:"sales.order.completed"`
	Telemetry
}

type Migrate struct {
	PostgresURL    string `env:"POSTGRES_URL,required"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`
}

// Load fills cfg from the environment after loading the given .env files.
// Missing .env files are ignored.
func Load[T any](cfg *T, files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
