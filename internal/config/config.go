package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values.
type Config struct {
	Env                     string        `mapstructure:"ENV"`
	Secret                  string        `mapstructure:"SECRET"`
	HTTPPort                string        `mapstructure:"HTTP_PORT"`
	DatabaseDriver          string        `mapstructure:"DATABASE_DRIVER"`
	DatabaseDSN             string        `mapstructure:"DATABASE_DSN"`
	DBHost                  string        `mapstructure:"DB_HOST"`
	DBPort                  string        `mapstructure:"DB_PORT"`
	DBUser                  string        `mapstructure:"DB_USER"`
	DBPassword              string        `mapstructure:"DB_PASSWORD"`
	DBName                  string        `mapstructure:"DB_NAME"`
	RestockApprovalRequired bool          `mapstructure:"RESTOCK_APPROVAL_REQUIRED"`
	KafkaBrokers            []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic              string        `mapstructure:"KAFKA_TOPIC"`
	CORSOrigins             []string      `mapstructure:"CORS_ORIGINS"`
	LogLevel                string        `mapstructure:"LOG_LEVEL"`
	TokenTTL                time.Duration `mapstructure:"TOKEN_TTL"`
}

var keys = []string{
	"ENV", "SECRET", "HTTP_PORT", "DATABASE_DRIVER", "DATABASE_DSN",
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
	"RESTOCK_APPROVAL_REQUIRED", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"CORS_ORIGINS", "LOG_LEVEL", "TOKEN_TTL",
}

// Load reads .env (if present) and the environment, with reasonable defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("SECRET", "dev_secret")
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "clinic")
	v.SetDefault("RESTOCK_APPROVAL_REQUIRED", false)
	v.SetDefault("KAFKA_TOPIC", "clinic.inventory.notifications")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TOKEN_TTL", "24h")

	// Unmarshal only sees keys viper knows about.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)

	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = cfg.defaultDSN()
	}
	return cfg, nil
}

func (c *Config) defaultDSN() string {
	if c.DatabaseDriver == "pgx" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	}
	return "file:clinic.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.HTTPPort); err != nil {
		return fmt.Errorf("HTTP_PORT must be numeric, got %q", c.HTTPPort)
	}
	if c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "pgx" {
		return fmt.Errorf("DATABASE_DRIVER must be \"sqlite\" or \"pgx\", got %q", c.DatabaseDriver)
	}
	if !c.IsDev() && (c.Secret == "" || c.Secret == "dev_secret") {
		return fmt.Errorf("SECRET must be set outside development")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
