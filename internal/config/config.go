package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const devSecret = "dev-secret-change-me"

// Config describes all runtime settings for the server. Load it once in
// main and pass the parts down explicitly.
type Config struct {
	Env string `env:"APP_ENV" envDefault:"dev"` // dev|stage|prod

	Log struct {
		Format string `env:"LOG_FORMAT" envDefault:"text"` // text|json
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
	}

	HTTP struct {
		Addr              string        `env:"HTTP_ADDR" envDefault:":8080"`
		ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
		ReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"0s"`
		WriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"`
		IdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	}

	Redis struct {
		Enabled  bool          `env:"REDIS_ENABLED" envDefault:"false"`
		Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
		DB       int           `env:"REDIS_DB" envDefault:"0"`
		MatchTTL time.Duration `env:"MATCH_TTL" envDefault:"24h"`
	}

	Auth struct {
		Secret   string        `env:"SCORER_SECRET" envDefault:"dev-secret-change-me"`
		TokenTTL time.Duration `env:"SCORER_TOKEN_TTL" envDefault:"12h"`
	}

	Match struct {
		BestOf int `env:"MATCH_BEST_OF" envDefault:"0"` // 0 => unbounded
	}

	Voice struct {
		Enabled    bool   `env:"VOICE_ENABLED" envDefault:"false"`
		APIKey     string `env:"VOICE_API_KEY"`
		BaseURL    string `env:"VOICE_BASE_URL"`
		Model      string `env:"VOICE_MODEL"`
		SampleRate int    `env:"VOICE_SAMPLE_RATE" envDefault:"16000"`
	}
}

func LoadFromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("HTTP_ADDR is empty")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("REDIS_ADDR is empty")
	}
	if c.Redis.MatchTTL <= 0 {
		return fmt.Errorf("MATCH_TTL must be positive, got %s", c.Redis.MatchTTL)
	}
	if c.Auth.Secret == "" {
		return errors.New("SCORER_SECRET is empty")
	}
	if c.Env != "dev" && c.Auth.Secret == devSecret {
		return fmt.Errorf("refuse to run with default SCORER_SECRET in %s", c.Env)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("SCORER_TOKEN_TTL must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("unsupported LOG_FORMAT=%q (want text|json)", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported LOG_LEVEL=%q", c.Log.Level)
	}
	if c.Match.BestOf < 0 || (c.Match.BestOf > 0 && c.Match.BestOf%2 == 0) {
		return fmt.Errorf("MATCH_BEST_OF must be 0 or an odd number, got %d", c.Match.BestOf)
	}
	if c.Voice.Enabled && strings.TrimSpace(c.Voice.APIKey) == "" {
		return errors.New("VOICE_ENABLED requires VOICE_API_KEY")
	}
	if c.Voice.SampleRate <= 0 {
		return fmt.Errorf("VOICE_SAMPLE_RATE must be positive, got %d", c.Voice.SampleRate)
	}
	return nil
}
