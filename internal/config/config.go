package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"pkg.aura.care/moodfeed/internal/config/hook"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverGorm     = "gorm"
	DriverRedis    = "redis"
)

type Config struct {
	Storage struct {
		Driver        string
		PostgresDSN   string
		GormDialect   string
		GormDSN       string
		RedisAddr     string
		RedisPassword string
		RedisDB       int
		MaxAttempts   int
	}

	Feed struct {
		DefaultLimit       int
		LookupConcurrency  int
		CallTimeout        time.Duration
		BlockedNotePattern string
		// NoteFilter is BlockedNotePattern compiled, nil when the pattern is empty.
		NoteFilter *regexp.Regexp `mapstructure:"-"`
	}

	Auth struct {
		JWTSecret string
		Issuer    string
	}

	Logging struct {
		Level zapcore.Level
	}

	Api struct {
		Port           uint16
		AllowedOrigins []string
	}
}

// Read loads .env (if any) into the environment, then config.yaml from the
// working directory (if any), then CONF_* environment variables.
func Read() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("couldn't load .env: %w", err)
	}
	v := viper.New()
	configureDefaults(v)
	configureEnv(v)
	configureLocation(v, ".")
	return readUnmarshalConfig(v)
}

func configureDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.postgresDSN", "")
	v.SetDefault("storage.gormDialect", "sqlite")
	v.SetDefault("storage.gormDSN", "moodfeed.db")
	v.SetDefault("storage.redisAddr", "localhost:6379")
	v.SetDefault("storage.redisPassword", "")
	v.SetDefault("storage.redisDB", 0)
	v.SetDefault("storage.maxAttempts", 25)

	v.SetDefault("feed.defaultLimit", 50)
	v.SetDefault("feed.lookupConcurrency", 8)
	v.SetDefault("feed.callTimeout", "10s")
	v.SetDefault("feed.blockedNotePattern", "")

	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("logging.level", "info")

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.allowedOrigins", []string{"*"})
}

func configureEnv(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetEnvPrefix("conf")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

func configureLocation(v *viper.Viper, paths ...string) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
}

func readUnmarshalConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	c := &Config{}
	if err := v.Unmarshal(c, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		hook.Level(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverGorm, DriverRedis:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("storage.postgresDSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Feed.DefaultLimit <= 0 {
		return errors.New("feed.defaultLimit must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is required")
	}
	if p := c.Feed.BlockedNotePattern; p != "" {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("feed.blockedNotePattern: %w", err)
		}
		c.Feed.NoteFilter = re
	}
	return nil
}
