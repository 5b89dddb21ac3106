package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

const defaultDBName = "cal"

// Config is parsed from CITYCAL_ prefixed environment variables.
// Example: CITYCAL_PORT, CITYCAL_MONGODB_URI
type Config struct {
	Port        string      `envconfig:"PORT" default:"8080"`
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// mongo or memory
	StoreDriver  string        `envconfig:"STORE_DRIVER" default:"mongo"`
	MongoURI     string        `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017/cal"`
	MongoDBName  string        `envconfig:"MONGODB_DB_NAME" default:""`
	MongoTimeout time.Duration `envconfig:"MONGODB_TIMEOUT" default:"5s"`

	// Redis is optional; an empty address disables caching and falls back to in-process revocation.
	RedisAddr        string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword    string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB          int           `envconfig:"REDIS_DB" default:"0"`
	CalendarCacheTTL time.Duration `envconfig:"CALENDAR_CACHE_TTL" default:"5m"`

	JWTSecret       string        `envconfig:"JWT_SECRET" default:""`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"12h"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"168h"`
	BcryptCost      int           `envconfig:"BCRYPT_COST" default:"10"`

	WeatherAPIKey   string        `envconfig:"WEATHER_API_KEY" default:""`
	WeatherBaseURL  string        `envconfig:"WEATHER_BASE_URL" default:"https://api.weatherapi.com/v1"`
	WeatherCacheTTL time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"10m"`

	GitHubClientID     string `envconfig:"GITHUB_CLIENT_ID" default:""`
	GitHubClientSecret string `envconfig:"GITHUB_CLIENT_SECRET" default:""`
	GitHubRedirectURL  string `envconfig:"GITHUB_REDIRECT_URL" default:"http://localhost:8080/api/auth/github/callback"`

	AllowedOrigins     []string `envconfig:"ALLOWED_ORIGINS" default:"*"`
	RateLimitPerSecond float64  `envconfig:"RATE_LIMIT_PER_SECOND" default:"5"`
	RateLimitBurst     int      `envconfig:"RATE_LIMIT_BURST" default:"10"`
}

// devSecret is only accepted when running in development.
const devSecret = "citycal-dev-secret"

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CITYCAL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot and fills in derived defaults.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "mongo", "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}

	if c.JWTSecret == "" {
		if c.Environment != EnvDevelopment && c.Environment != EnvTesting {
			return errors.New("JWT_SECRET is required outside development")
		}
		c.JWTSecret = devSecret
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST out of range: %d", c.BcryptCost)
	}

	if !strings.HasPrefix(c.Port, ":") {
		c.Port = ":" + c.Port
	}

	c.MongoDBName = ResolveDatabaseName(c.MongoURI, c.MongoDBName)
	return nil
}

// DatabaseNameFromURI takes the database from the URI path, falling back to "cal".
func DatabaseNameFromURI(uri string) string {
	return ResolveDatabaseName(uri, "")
}

// ResolveDatabaseName prefers the database in the URI path. MONGODB_DB_NAME is
// only consulted when the path is empty; an unparsable URI always yields "cal".
func ResolveDatabaseName(uri, fallback string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultDBName
	}
	if name := strings.TrimPrefix(u.Path, "/"); name != "" {
		return name
	}
	if fallback != "" {
		return fallback
	}
	return defaultDBName
}

// IsDevelopment reports whether human-readable console logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// GitHubEnabled reports whether the OAuth routes should be registered.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// NewForTesting returns a config that never touches external services.
func NewForTesting() *Config {
	return &Config{
		Port:               ":0",
		Environment:        EnvTesting,
		LogLevel:           "debug",
		StoreDriver:        "memory",
		MongoDBName:        defaultDBName,
		MongoTimeout:       time.Second,
		CalendarCacheTTL:   time.Minute,
		JWTSecret:          "test-secret",
		AccessTokenTTL:     time.Hour,
		RefreshTokenTTL:    24 * time.Hour,
		BcryptCost:         4,
		WeatherBaseURL:     "http://localhost:0",
		WeatherCacheTTL:    time.Minute,
		AllowedOrigins:     []string{"*"},
		RateLimitPerSecond: 100,
		RateLimitBurst:     100,
	}
}
