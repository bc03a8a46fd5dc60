package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultAppName        = "TollWallet"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultLockTimeout    = 5 * time.Second
	defaultRequestTimeout = 15 * time.Second
	defaultCardCacheTTL   = 5 * time.Minute
	defaultTapRateLimit   = 30
	defaultCurrency       = "₦"
	defaultExponent       = 2
	defaultNotifyChannel  = "wallet:notifications"
)

// Config captures application runtime configuration loaded from environment
// variables and an optional .env file.
type Config struct {
	AppName             string
	AppEnv              string
	Port                string
	LogLevel            string
	DatabaseURL         string
	RedisURL            string
	AutoMigrate         bool
	ShutdownPeriod      time.Duration
	IdempotencyTTL      time.Duration
	IdempotencyRequired bool
	LockTimeout         time.Duration
	RequestTimeout      time.Duration
	CardCacheTTL        time.Duration
	TapRateLimit        int
	CurrencySymbol      string
	CurrencyExponent    int32
	ReferenceSalt       string
	NotifyChannel       string
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("IDEMPOTENCY_REQUIRED", false)
	v.SetDefault("TAP_RATE_LIMIT", defaultTapRateLimit)
	v.SetDefault("CURRENCY_SYMBOL", defaultCurrency)
	v.SetDefault("CURRENCY_EXPONENT", defaultExponent)
	v.SetDefault("NOTIFY_CHANNEL", defaultNotifyChannel)

	cfg := Config{
		AppName:             v.GetString("APP_NAME"),
		AppEnv:              v.GetString("APP_ENV"),
		Port:                v.GetString("PORT"),
		LogLevel:            strings.ToLower(v.GetString("LOG_LEVEL")),
		DatabaseURL:         v.GetString("DATABASE_URL"),
		RedisURL:            v.GetString("REDIS_URL"),
		AutoMigrate:         v.GetBool("AUTO_MIGRATE"),
		IdempotencyRequired: v.GetBool("IDEMPOTENCY_REQUIRED"),
		TapRateLimit:        v.GetInt("TAP_RATE_LIMIT"),
		CurrencySymbol:      v.GetString("CURRENCY_SYMBOL"),
		CurrencyExponent:    v.GetInt32("CURRENCY_EXPONENT"),
		ReferenceSalt:       v.GetString("REFERENCE_SALT"),
		NotifyChannel:       v.GetString("NOTIFY_CHANNEL"),
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(v, "SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(v, "IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockTimeout, err = secondsOrDuration(v, "LOCK_TIMEOUT", defaultLockTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = secondsOrDuration(v, "REQUEST_TIMEOUT", defaultRequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.CardCacheTTL, err = secondsOrDuration(v, "CARD_CACHE_TTL", defaultCardCacheTTL); err != nil {
		return Config{}, err
	}

	if cfg.CurrencyExponent < 0 || cfg.CurrencyExponent > 4 {
		return Config{}, fmt.Errorf("invalid CURRENCY_EXPONENT: %d", cfg.CurrencyExponent)
	}
	if cfg.TapRateLimit < 0 {
		return Config{}, fmt.Errorf("invalid TAP_RATE_LIMIT: %d", cfg.TapRateLimit)
	}

	// Without a database the service falls back to in-memory storage, which is
	// only acceptable while developing.
	if cfg.DatabaseURL == "" && !cfg.IsDev() {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsDev() bool {
	env := strings.ToLower(c.AppEnv)
	return env == "development" || env == "dev" || env == "local" || env == "test"
}

// secondsOrDuration reads KEY_SECONDS as whole seconds, falling back to KEY as
// a Go duration string.
func secondsOrDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	secondsKey := key + "_SECONDS"
	if raw := v.GetString(secondsKey); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if raw := v.GetString(key); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}
