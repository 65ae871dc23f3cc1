package config

import (
	"errors"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// Load parses environment variables into a new T using `env` struct tags.
//
// Without arguments the optional ./.env file is read once per process; a
// missing file is not an error. When files are given they must exist.
// Variables already present in the environment are never overridden.
//
//	type Config struct {
//		AdminEmails []string `env:"NOTIFY_ADMIN_EMAILS" envSeparator:","`
//		Workers     int      `env:"NOTIFY_SEND_WORKERS" envDefault:"4"`
//	}
//
//	cfg, err := config.Load[Config]()
func Load[T any](files ...string) (T, error) {
	if len(files) == 0 {
		defaultEnvLoaded.Do(func() {
			_ = godotenv.Load()
		})
	} else if err := godotenv.Load(files...); err != nil {
		var zero T
		return zero, errors.Join(ErrLoadingEnvFile, err)
	}

	cfg, err := env.ParseAs[T]()
	if err != nil {
		var zero T
		return zero, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}

// MustLoad works like Load but panics on failure. Meant for startup code.
func MustLoad[T any](files ...string) T {
	cfg, err := Load[T](files...)
	if err != nil {
		panic(err)
	}
	return cfg
}
