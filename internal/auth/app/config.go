package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/otpgate/internal/auth/mailer"
	"github.com/aussiebroadwan/otpgate/internal/auth/service"
)

// DevJWTSecret signs HS256 tokens when JWT_SECRET is unset outside production.
const DevJWTSecret = "otpgate-dev-secret-do-not-use-in-prod"

// Supported values.
const (
	EnvProd = "prod"

	AlgHS256 = "HS256"
	AlgEdDSA = "EdDSA"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Env                 string        `env:"ENV" envDefault:"dev"`         // dev, test, prod
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`  // debug, info, warn, error
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"` // json, text
	Port                int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	Issuer          string        `env:"AUTH_ISSUER" envDefault:"otpgate"`
	Audience        string        `env:"AUTH_AUDIENCE" envDefault:"otpgate-api"`
	Algorithm       string        `env:"AUTH_ALGORITHM" envDefault:"HS256"`
	JWTSecret       string        `env:"JWT_SECRET"`
	KeyID           string        `env:"AUTH_KEY_ID" envDefault:"otpgate-key-001"` // EdDSA only
	AccessTokenTTL  time.Duration `env:"AUTH_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"AUTH_REFRESH_TOKEN_TTL" envDefault:"168h"`

	OTPTTL           time.Duration `env:"AUTH_OTP_TTL" envDefault:"10m"`
	OTPBcryptCost    int           `env:"AUTH_OTP_BCRYPT_COST" envDefault:"10"`
	OTPDevMode       bool          `env:"AUTH_OTP_DEV_MODE"`
	OTPMaxAttempts   int           `env:"AUTH_OTP_MAX_ATTEMPTS" envDefault:"5"`
	OTPAttemptWindow time.Duration `env:"AUTH_OTP_ATTEMPT_WINDOW" envDefault:"15m"`
	OTPRetention     time.Duration `env:"AUTH_OTP_RETENTION"` // 0 keeps every OTP

	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	DatabaseDriver string `env:"AUTH_DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseFile   string `env:"AUTH_DATABASE_FILE" envDefault:"auth.db"`
	DatabaseURL    string `env:"AUTH_DATABASE_URL"`
	PepperFile     string `env:"AUTH_PEPPER_FILE" envDefault:"pepper"`

	AdminEmails string `env:"ADMIN_EMAILS"`
	AdminEmail  string `env:"ADMIN_EMAIL"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB"`

	// CookieSecure is nil when unset and then follows IsProd.
	CookieSecure *bool `env:"COOKIE_SECURE"`
}

// LoadConfig parses the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Algorithm = normalizeAlgorithm(cfg.Algorithm)
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	return cfg, nil
}

func normalizeAlgorithm(alg string) string {
	switch strings.ToUpper(strings.TrimSpace(alg)) {
	case "EDDSA":
		return AlgEdDSA
	case "HS256":
		return AlgHS256
	default:
		return alg
	}
}

func (c Config) IsProd() bool { return strings.EqualFold(c.Env, EnvProd) }

// Diagnostics reports whether OTP errors carry expiresAt/serverTime.
func (c Config) Diagnostics() bool { return !c.IsProd() }

func (c Config) SecureCookies() bool {
	if c.CookieSecure != nil {
		return *c.CookieSecure
	}
	return c.IsProd()
}

// Secret returns the HS256 key and whether it is the development fallback.
func (c Config) Secret() ([]byte, bool) {
	if c.JWTSecret == "" {
		return []byte(DevJWTSecret), true
	}
	return []byte(c.JWTSecret), false
}

func (c Config) SMTP() mailer.SMTPConfig {
	return mailer.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUser,
		Password: c.SMTPPass,
		From:     c.SMTPFrom,
		AppName:  c.Issuer,
	}
}

func (c Config) AdminPolicy() *service.AdminPolicy {
	return service.NewAdminPolicy(service.ParseAdminEmails(c.AdminEmails, c.AdminEmail)...)
}

// Validate rejects unusable settings, and production settings that would leak
// codes or sign with a well-known key.
func (c Config) Validate() error {
	var errs []error

	switch c.Algorithm {
	case AlgHS256, AlgEdDSA:
	default:
		errs = append(errs, fmt.Errorf("AUTH_ALGORITHM %q: want HS256 or EdDSA", c.Algorithm))
	}

	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE is required for sqlite"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_DATABASE_DRIVER %q: want sqlite or postgres", c.DatabaseDriver))
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.OTPTTL <= 0 {
		errs = append(errs, errors.New("token and OTP lifetimes must be positive"))
	}
	if c.Algorithm == AlgHS256 && c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}

	if c.IsProd() {
		if c.OTPDevMode {
			errs = append(errs, errors.New("AUTH_OTP_DEV_MODE must be off in prod"))
		}
		if _, fallback := c.Secret(); fallback && c.Algorithm == AlgHS256 {
			errs = append(errs, errors.New("JWT_SECRET is required in prod"))
		}
		if !c.SMTP().Ready() {
			errs = append(errs, errors.New("SMTP_HOST, SMTP_USER and SMTP_PASS are required in prod"))
		}
	}

	return errors.Join(errs...)
}
