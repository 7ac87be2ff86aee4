package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Twilio  TwilioConfig
	Oracle  OracleConfig
	Routing RoutingConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally reachable origin used to build
	// gateway callback URLs (screening prompt, dial result, status).
	PublicBaseURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string

	// MaxConns caps open connections; 0 keeps the pool default.
	MaxConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type TwilioConfig struct {
	AccountSID string
	// AuthToken doubles as the webhook signing key. Empty disables signature checks.
	AuthToken string
}

// OracleConfig points at the text-classification backend.
type OracleConfig struct {
	URL      string
	APIKey   string
	Model    string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type RoutingConfig struct {
	// DefaultAccountID receives events whose destination number has no owner.
	DefaultAccountID string
	DedupTTL         time.Duration
	SweepSchedule    string
	PolicyFile       string
}

// Load reads every setting from the environment and validates the result.
// All parse failures are reported together.
func Load() (Config, error) {
	var c Config
	var env envReader

	c.App.Env = env.str("APP_ENV")
	c.App.Port = env.integer("APP_PORT", true)
	c.App.PublicBaseURL = strings.TrimRight(env.str("PUBLIC_BASE_URL"), "/")

	c.DB.Host = env.str("DB_HOST")
	c.DB.Port = env.integer("DB_PORT", true)
	c.DB.User = env.str("DB_USER")
	c.DB.Password = env.secret("DB_PASSWORD")
	c.DB.Name = env.str("DB_NAME")
	c.DB.SSLMode = env.str("DB_SSLMODE")
	c.DB.MaxConns = env.integer("DB_MAX_CONNS", false)

	c.Redis.Host = env.str("REDIS_HOST")
	c.Redis.Port = env.integer("REDIS_PORT", true)
	c.Redis.Password = env.secret("REDIS_PASSWORD")
	c.Redis.DB = env.integer("REDIS_DB", false)

	c.Auth.JWTSecret = env.secret("JWT_SECRET")
	c.Auth.JWTIssuer = env.str("JWT_ISSUER")
	c.Auth.JWTAudience = env.str("JWT_AUDIENCE")
	c.Auth.AccessTokenTTL = env.duration("JWT_ACCESS_TTL")

	c.Twilio.AccountSID = env.str("TWILIO_ACCOUNT_SID")
	c.Twilio.AuthToken = env.secret("TWILIO_AUTH_TOKEN")

	c.Oracle.URL = env.str("ORACLE_URL")
	c.Oracle.APIKey = env.secret("ORACLE_API_KEY")
	c.Oracle.Model = env.str("ORACLE_MODEL")
	c.Oracle.Timeout = env.duration("ORACLE_TIMEOUT")
	c.Oracle.CacheTTL = env.duration("ORACLE_CACHE_TTL")

	c.Routing.DefaultAccountID = env.str("DEFAULT_ACCOUNT_ID")
	c.Routing.DedupTTL = env.duration("DEDUP_TTL")
	c.Routing.SweepSchedule = env.str("SWEEP_SCHEDULE")
	c.Routing.PolicyFile = env.str("ROUTING_POLICY_FILE")

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required settings and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.PublicBaseURL == "" && c.IsProduction() {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required in production"))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.DB.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("DB_MAX_CONNS must be >= 0, got %d", c.DB.MaxConns))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		errs = append(errs, fmt.Errorf("REDIS_DB must be between 0 and 15, got %d", c.Redis.DB))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
		if c.Twilio.AuthToken == "" {
			errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.Oracle.URL == "" {
		errs = append(errs, errors.New("ORACLE_URL is required"))
	}
	if c.Oracle.Model == "" {
		c.Oracle.Model = "gpt-4.1-mini"
	}
	if c.Oracle.Timeout <= 0 {
		// Classification must never hold a webhook past the gateway's own timeout.
		c.Oracle.Timeout = 4 * time.Second
	}
	if c.Oracle.Timeout > 10*time.Second {
		errs = append(errs, fmt.Errorf("ORACLE_TIMEOUT must be at most 10s, got %s", c.Oracle.Timeout))
	}
	if c.Oracle.CacheTTL <= 0 {
		c.Oracle.CacheTTL = 24 * time.Hour
	}

	if c.Routing.DedupTTL <= 0 {
		c.Routing.DedupTTL = 48 * time.Hour
	}
	if c.Routing.SweepSchedule == "" {
		c.Routing.SweepSchedule = "*/5 * * * *"
	}
	if _, err := cron.ParseStandard(c.Routing.SweepSchedule); err != nil {
		errs = append(errs, fmt.Errorf("SWEEP_SCHEDULE is not a valid cron expression: %v", err))
	}

	return errors.Join(errs...)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// envReader collects parse errors so Load can report them all at once.
type envReader struct {
	lookup func(string) string
	errs   []error
}

func (r *envReader) raw(key string) string {
	if r.lookup == nil {
		r.lookup = os.Getenv
	}
	return r.lookup(key)
}

func (r *envReader) str(key string) string { return strings.TrimSpace(r.raw(key)) }

// secret is not trimmed: whitespace may be part of the value.
func (r *envReader) secret(key string) string { return r.raw(key) }

func (r *envReader) integer(key string, required bool) int {
	v := r.str(key)
	if v == "" {
		if required {
			r.errs = append(r.errs, fmt.Errorf("%s is required", key))
		}
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n
}

// duration returns 0 for an unset key so Validate can apply its default.
func (r *envReader) duration(key string) time.Duration {
	v := r.str(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s must be a duration like 30s or 5m, got %q", key, v))
	}
	return d
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}
