package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	Session   SessionConfig
	Paths     PathConfig
	Radiology RadiologyConfig
	Audit     AuditConfig

	Mongo MongoConfig
	Redis RedisConfig
}

type SessionConfig struct {
	JWTSecret    string        `env:"JWT_SECRET, required"`
	TTL          time.Duration `env:"SESSION_TTL,    default=8h"`
	CookieName   string        `env:"SESSION_COOKIE, default=clinic_session"`
	CookieSecure bool          `env:"COOKIE_SECURE,  default=false"`
}

type PathConfig struct {
	Login   string `env:"LOGIN_PATH,   default=/login"`
	Landing string `env:"LANDING_PATH, default=/dashboard"`
}

type RadiologyConfig struct {
	SealPath string `env:"RADIOLOGY_SEAL_PATH, default=./assets/radiology-seal.png"`
}

type AuditConfig struct {
	Workers int `env:"AUDIT_WORKERS, default=4"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=clinic_system"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadWith(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadWith reads configuration from l and validates it.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MaxSessionTTL caps SESSION_TTL. Published revocation versions are kept
// at least this long.
const MaxSessionTTL = 30 * 24 * time.Hour

func (c *Config) validate() error {
	if len(c.Session.JWTSecret) < 16 && !c.IsDevelopment() {
		return errors.New("JWT_SECRET must be at least 16 characters outside development")
	}
	if c.Session.TTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.Session.TTL > MaxSessionTTL {
		return fmt.Errorf("SESSION_TTL must not exceed %s", MaxSessionTTL)
	}
	// LOGIN_PATH is exempt from the session gate by prefix; "/" would exempt everything.
	if !isPagePath(c.Paths.Login) {
		return fmt.Errorf("LOGIN_PATH %q must be an absolute path below /", c.Paths.Login)
	}
	if !isPagePath(c.Paths.Landing) {
		return fmt.Errorf("LANDING_PATH %q must be an absolute path below /", c.Paths.Landing)
	}
	if c.Paths.Login == c.Paths.Landing {
		return errors.New("LOGIN_PATH and LANDING_PATH must differ")
	}
	return nil
}

func isPagePath(p string) bool {
	return strings.HasPrefix(p, "/") && strings.Trim(p, "/") != ""
}
