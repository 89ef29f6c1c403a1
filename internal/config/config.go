package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

// Config aggregates every tunable part of the application. Variable names are
// derived from the section and field names, e.g. DB.MaxOpenConns reads
// DB_MAX_OPEN_CONNS.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Log      LogConfig
	Swagger  SwaggerConfig
	Storage  StorageConfig
	Metering MeteringConfig
	CORS     CORSConfig
}

// AppConfig contains settings related to the HTTP server.
type AppConfig struct {
	Port string `default:"8080"`
	Env  string `default:"dev"`
}

// DBConfig represents PostgreSQL connection settings.
type DBConfig struct {
	Driver          string        `default:"postgres"`
	Host            string        `default:"localhost"`
	Port            string        `default:"5432"`
	User            string
	Password        string
	Name            string
	SSLMode         string        `default:"disable"`
	MaxOpenConns    int           `split_words:"true" default:"10"`
	MaxIdleConns    int           `split_words:"true" default:"5"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"1h"`
	AutoMigrate     bool          `split_words:"true" default:"true"`
}

// DSN builds the postgres connection string from the individual fields.
func (db DBConfig) DSN() string {
	host := db.Host
	if host == "" {
		host = "localhost"
	}

	port := db.Port
	if port == "" {
		port = "5432"
	}

	sslMode := db.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		db.User,
		db.Password,
		host,
		port,
		db.Name,
		sslMode,
	)
}

// LogConfig controls logger behavior.
type LogConfig struct {
	Level string `default:"info"`
}

// SwaggerConfig configures the generated documentation.
type SwaggerConfig struct {
	Host string
}

// StorageConfig selects the backend for subscriptions and watch events.
type StorageConfig struct {
	Driver string `default:"postgres"`
}

// MeteringConfig tunes the watch gate's HTTP surface.
type MeteringConfig struct {
	IdempotencyTTL time.Duration `split_words:"true" default:"10m"`
}

type CORSConfig struct {
	AllowedOrigins []string `split_words:"true" default:"*"`
}

// IsDev reports whether the app runs in a local development environment.
func (a AppConfig) IsDev() bool {
	return a.Env == "dev" || a.Env == "development"
}

// Load reads environment variables and validates the final configuration.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	cfg.DB.Driver = strings.ToLower(cfg.DB.Driver)

	if cfg.Swagger.Host == "" {
		cfg.Swagger.Host = fmt.Sprintf("localhost:%s", cfg.App.Port)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (cfg Config) validate() error {
	switch cfg.Storage.Driver {
	case StorageMemory:
		return nil
	case StoragePostgres:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.Storage.Driver)
	}

	if cfg.DB.Driver != DriverPQ && cfg.DB.Driver != DriverPGX {
		return fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	var missing []string

	if cfg.DB.User == "" {
		missing = append(missing, "DB_USER")
	}
	if cfg.DB.Password == "" {
		missing = append(missing, "DB_PASSWORD")
	}
	if cfg.DB.Name == "" {
		missing = append(missing, "DB_NAME")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}
