// Package config loads service configuration from CELLAR_* environment
// variables. Every knob has a default so the server starts with no
// environment at all, using a local SQLite file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix shared by all environment variables.
const EnvPrefix = "cellar"

type Config struct {
	App AppConfig
	DB  DBConfig
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"CELLAR_APP_ENV" default:"dev"`
	Port            string        `envconfig:"CELLAR_APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"CELLAR_LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"CELLAR_LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"CELLAR_SHUTDOWN_TIMEOUT" default:"10s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, "dev")
}

type DBConfig struct {
	// Path is the SQLite database file; ":memory:" keeps everything in RAM.
	Path string `envconfig:"CELLAR_DB_PATH" default:"./data/cellar.db"`
}
