package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Quiz     QuizConfig     `yaml:"quiz"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"SKILLSCAPE_PORT"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"SKILLSCAPE_REDIS_ADDR"`
	Password string `yaml:"password" env:"SKILLSCAPE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"SKILLSCAPE_REDIS_DB"`
	TTL      string `yaml:"ttl" env:"SKILLSCAPE_REDIS_TTL"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"SKILLSCAPE_POSTGRES_URL"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" env:"SKILLSCAPE_MONGO_URI"`
	Database string `yaml:"database" env:"SKILLSCAPE_MONGO_DATABASE"`
}

type QuizConfig struct {
	TTL         string `yaml:"ttl" env:"SKILLSCAPE_QUIZ_TTL"`
	SessionTTL  string `yaml:"session_ttl" env:"SKILLSCAPE_QUIZ_SESSION_TTL"`
	AnswersTTL  string `yaml:"answers_ttl" env:"SKILLSCAPE_QUIZ_ANSWERS_TTL"`
	DefaultQuiz string `yaml:"default_quiz" env:"SKILLSCAPE_QUIZ_DEFAULT"`
}

type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret" env:"SKILLSCAPE_AUTH_JWT_SECRET"`
	Issuer      string `yaml:"issuer" env:"SKILLSCAPE_AUTH_ISSUER"`
	TokenTTL    string `yaml:"token_ttl" env:"SKILLSCAPE_AUTH_TOKEN_TTL"`
	MaxAttempts int    `yaml:"max_attempts" env:"SKILLSCAPE_AUTH_MAX_ATTEMPTS"`
	Window      string `yaml:"attempt_window" env:"SKILLSCAPE_AUTH_ATTEMPT_WINDOW"`
	BcryptCost  int    `yaml:"bcrypt_cost" env:"SKILLSCAPE_AUTH_BCRYPT_COST"`

	Federated FederatedConfig `yaml:"federated"`
}

// FederatedConfig enables ID-token sign-in when Issuer and Secret are set.
type FederatedConfig struct {
	Issuer   string `yaml:"issuer" env:"SKILLSCAPE_FEDERATED_ISSUER"`
	Audience string `yaml:"audience" env:"SKILLSCAPE_FEDERATED_AUDIENCE"`
	Secret   string `yaml:"secret" env:"SKILLSCAPE_FEDERATED_SECRET"`
}

// Enabled reports whether federated sign-in is configured.
func (f FederatedConfig) Enabled() bool {
	return f.Issuer != "" && f.Secret != ""
}

// Load reads YAML config from path, then applies SKILLSCAPE_* environment
// overrides. A missing file is not an error; values then come from env only.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
