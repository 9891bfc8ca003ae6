package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const minHMACSecretLen = 32

// Config holds all configuration for the insightdesk server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	APIKey    APIKeyConfig
	Token     TokenConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port int    `env:"INSIGHTDESK_PORT" envDefault:"8080"`
	Env  string `env:"INSIGHTDESK_ENV"  envDefault:"development"`
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"5m"`
	MigrationsDir   string        `env:"DATABASE_MIGRATIONS_DIR"    envDefault:"migrations"`
}

type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

// APIKeyConfig configures key issuance. HMACSecret is shared by every
// create and validate call and must never be logged.
type APIKeyConfig struct {
	HMACSecret string `env:"APIKEY_HMAC_SECRET"`
	SecretSize int    `env:"APIKEY_SECRET_SIZE" envDefault:"32"`
}

// TokenConfig configures the token endpoint. Clients maps client ids to
// bcrypt hashes of their secrets.
type TokenConfig struct {
	SigningKey string            `env:"TOKEN_SIGNING_KEY"`
	Issuer     string            `env:"TOKEN_ISSUER"   envDefault:"insightdesk"`
	Lifetime   time.Duration     `env:"TOKEN_LIFETIME" envDefault:"1h"`
	Clients    map[string]string `env:"OAUTH_CLIENTS"`
}

type RateLimitConfig struct {
	RequestsPerMinute      int `env:"RATE_LIMIT_PER_MINUTE"       envDefault:"60"`
	TokenRequestsPerMinute int `env:"TOKEN_RATE_LIMIT_PER_MINUTE" envDefault:"30"`
}

// String hides secrets when the config is printed.
func (c APIKeyConfig) String() string {
	return fmt.Sprintf("{HMACSecret:<redacted> SecretSize:%d}", c.SecretSize)
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFile reads a dotenv file and then the environment. Environment
// variables take precedence over the file.
func LoadFile(filename string) (*Config, error) {
	fileEnv, err := godotenv.Read(filename)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", filename, err)
	}
	for k, v := range env.ToMap(os.Environ()) {
		fileEnv[k] = v
	}
	return parse(env.Options{Environment: fileEnv})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env vars: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return errors.New("REDIS_URL is required")
	}
	if !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://, got %q", c.Redis.URL)
	}

	if c.APIKey.HMACSecret == "" {
		return errors.New("APIKEY_HMAC_SECRET is required")
	}
	if len(c.APIKey.HMACSecret) < minHMACSecretLen {
		return fmt.Errorf("APIKEY_HMAC_SECRET must be at least %d bytes", minHMACSecretLen)
	}
	if c.APIKey.SecretSize < 16 || c.APIKey.SecretSize > 128 {
		return fmt.Errorf("APIKEY_SECRET_SIZE must be between 16 and 128, got %d", c.APIKey.SecretSize)
	}

	if c.Token.SigningKey != "" && len(c.Token.SigningKey) < minHMACSecretLen {
		return fmt.Errorf("TOKEN_SIGNING_KEY must be at least %d bytes", minHMACSecretLen)
	}
	if c.Token.Lifetime <= 0 {
		return fmt.Errorf("TOKEN_LIFETIME must be positive, got %s", c.Token.Lifetime)
	}
	for id, hash := range c.Token.Clients {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return fmt.Errorf("OAUTH_CLIENTS: secret for client %q is not a bcrypt hash", id)
		}
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}
	if c.RateLimit.TokenRequestsPerMinute <= 0 {
		return fmt.Errorf("TOKEN_RATE_LIMIT_PER_MINUTE must be positive, got %d", c.RateLimit.TokenRequestsPerMinute)
	}

	return nil
}
