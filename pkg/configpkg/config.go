// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

// Lock backends.
const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environment variables.
type Config struct {
	DBDriver        string        `mapstructure:"DB_DRIVER"`
	DBSource        string        `mapstructure:"DB_SOURCE"`
	Environment     string        `mapstructure:"GO_ENV"`
	LockBackend     string        `mapstructure:"LOCK_BACKEND"`
	RedisAddress    string        `mapstructure:"REDIS_ADDRESS"`
	LockWaitTimeout time.Duration `mapstructure:"LOCK_WAIT_TIMEOUT"`
	LockTTL         time.Duration `mapstructure:"LOCK_TTL"`
	// TracingEndpoint is the OTLP/HTTP collector URL; spans are not exported when empty.
	TracingEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// ErrUnknownLockBackend indicates an unsupported LOCK_BACKEND value.
var ErrUnknownLockBackend = errors.New("unknown lock backend")

// ErrMissingRedisAddress indicates that the redis backend is selected without an address.
var ErrMissingRedisAddress = errors.New("REDIS_ADDRESS is required for the redis lock backend")

// Load reads configuration from file or environment variables.
//
// A missing app.env is not an error: the environment alone is enough.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("GO_ENV", "production")
	v.SetDefault("LOCK_BACKEND", LockBackendMemory)
	v.SetDefault("LOCK_WAIT_TIMEOUT", 5*time.Second)
	v.SetDefault("LOCK_TTL", 30*time.Second)
	// AutomaticEnv only overrides keys viper already knows about.
	v.SetDefault("DB_SOURCE", "")
	v.SetDefault("REDIS_ADDRESS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}

	if err := c.validate(); err != nil {
		return c, err
	}

	return c, nil
}

func (c Config) validate() error {
	switch c.LockBackend {
	case LockBackendMemory:
	case LockBackendRedis:
		if c.RedisAddress == "" {
			return ErrMissingRedisAddress
		}
	default:
		return ErrUnknownLockBackend
	}

	return validation.ValidateStruct(&c,
		validation.Field(&c.DBDriver, validation.Required),
		validation.Field(&c.LockTTL, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.LockWaitTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.TracingEndpoint, is.URL),
	)
}
