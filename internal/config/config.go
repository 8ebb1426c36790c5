package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MinSecretBytes is the shortest JWT_SECRET accepted.  HS256 needs at least
// 256 bits of key material.
const MinSecretBytes = 32

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; defaults apply when a variable is unset.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`   // application environment (dev/test/prod)
	Port string `env:"APP_PORT" envDefault:"8080"` // HTTP port to listen on

	DBUser string `env:"DB_USER" envDefault:"root"`      // database username
	DBPass string `env:"DB_PASS"`                        // database password (empty allowed)
	DBHost string `env:"DB_HOST" envDefault:"localhost"` // database host address
	DBPort string `env:"DB_PORT" envDefault:"3306"`      // database port number
	DBName string `env:"DB_NAME" envDefault:"krisefikser"`

	JWTSecret  string        `env:"JWT_SECRET,required,notEmpty"`           // HMAC secret used to sign tokens
	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`      // access token lifetime
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h"`     // refresh token lifetime
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"12"`            // bcrypt cost factor
	PruneEvery time.Duration `env:"TOKEN_PRUNE_INTERVAL" envDefault:"1h"`   // expired refresh row cleanup period
	AMQPURL    string        `env:"AMQP_URL"`                               // empty disables event publishing
	AuditLog   string        `env:"AUDIT_LOG_PATH" envDefault:"logs/auth.log"`

	// Optional bootstrap account created with the SUPER_ADMIN role at startup.
	SuperAdminEmail    string `env:"SUPER_ADMIN_EMAIL"`
	SuperAdminPassword string `env:"SUPER_ADMIN_PASSWORD"`
}

// Load reads an optional .env file, then parses the environment into a
// Config and validates it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the env parser cannot express as tags.
func (c Config) Validate() error {
	if len(c.JWTSecret) < MinSecretBytes {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", MinSecretBytes)
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.AccessTTL >= c.RefreshTTL {
		return errors.New("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	if c.PruneEvery <= 0 {
		return errors.New("TOKEN_PRUNE_INTERVAL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("invalid BCRYPT_COST %d", c.BcryptCost)
	}
	if (c.SuperAdminEmail == "") != (c.SuperAdminPassword == "") {
		return errors.New("SUPER_ADMIN_EMAIL and SUPER_ADMIN_PASSWORD must be set together")
	}
	return nil
}
