package sharedrt

import (
	"time"

	"go.llib.dev/frameless/pkg/env"
	"go.llib.dev/frameless/pkg/errorkit"
	"go.llib.dev/frameless/pkg/logging"
)

// Config is the environment based configuration of a Runtime.
type Config struct {
	// StoreCapacity bounds the shared store, zero means unbounded.
	StoreCapacity int `env:"SHAREDRT_STORE_CAPACITY" default:"0"`

	// StoreTTL expires idle shared values, zero means no expiry.
	StoreTTL time.Duration `env:"SHAREDRT_STORE_TTL" default:"0s"`

	StoreReleaseOnLastRef bool   `env:"SHAREDRT_STORE_RELEASE_ON_LAST_REF" default:"false"`
	DenyUnhandled         bool   `env:"SHAREDRT_DENY_UNHANDLED" default:"false"`
	LogLevel              string `env:"SHAREDRT_LOG_LEVEL" default:"info"`
}

const ErrInvalidConfig errorkit.Error = "sharedrt: invalid configuration"

// LoadConfig reads the Config from the environment.
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Load(&c); err != nil {
		return c, ErrInvalidConfig.Wrap(err)
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	if c.StoreCapacity < 0 {
		return ErrInvalidConfig.F("negative store capacity: %d", c.StoreCapacity)
	}
	if c.StoreTTL < 0 {
		return ErrInvalidConfig.F("negative store TTL: %s", c.StoreTTL)
	}
	if _, ok := c.Level(); !ok {
		return ErrInvalidConfig.F("unknown log level: %q", c.LogLevel)
	}
	return nil
}

// Level maps LogLevel to a logging.Level.
func (c Config) Level() (logging.Level, bool) {
	switch l := logging.Level(c.LogLevel); l {
	case logging.LevelDebug, logging.LevelInfo, logging.LevelWarn, logging.LevelError, logging.LevelFatal:
		return l, true
	default:
		return "", false
	}
}
