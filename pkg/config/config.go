package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Overpass      OverpassConfig      `yaml:"overpass"`
	Enrichment    EnrichmentConfig    `yaml:"enrichment"`
	Search        SearchConfig        `yaml:"search"`
	Redis         RedisConfig         `yaml:"redis"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Env                string        `yaml:"env"`
	Port               int           `yaml:"port"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	RateLimitPerSecond int           `yaml:"rate_limit_per_second"`
	RateLimitBurst     int           `yaml:"rate_limit_burst"`
	AllowedOrigins     []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// DSN returns URL when set, otherwise a postgres URL built from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(d.SSLMode)
	}
	return u.String()
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

type OverpassConfig struct {
	URL              string        `yaml:"url"`
	Timeout          time.Duration `yaml:"timeout"`
	RadiusMeters     int           `yaml:"radius_meters"`
	LimitPerCategory int           `yaml:"limit_per_category"`
	Locale           string        `yaml:"locale"`
}

type EnrichmentConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Workers    int           `yaml:"workers"`
	QueueSize  int           `yaml:"queue_size"`
	JobTimeout time.Duration `yaml:"job_timeout"`
	HistoryTTL time.Duration `yaml:"history_ttl"`
}

type SearchConfig struct {
	ElasticURL string `yaml:"elastic_url"`
	Index      string `yaml:"index"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Env:                "development",
			Port:               8000,
			ReadTimeout:        15 * time.Second,
			WriteTimeout:       60 * time.Second,
			ShutdownTimeout:    20 * time.Second,
			RateLimitPerSecond: 50,
			RateLimitBurst:     100,
			AllowedOrigins:     []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Port:     5432,
			SSLMode:  "disable",
			MaxConns: 25,
			MinConns: 5,
		},
		Auth: AuthConfig{Issuer: "aqarbay-api"},
		Overpass: OverpassConfig{
			URL:              "https://overpass-api.de/api/interpreter",
			Timeout:          30 * time.Second,
			RadiusMeters:     1000,
			LimitPerCategory: 10,
			Locale:           "ar",
		},
		Enrichment: EnrichmentConfig{
			Enabled:    true,
			Workers:    4,
			QueueSize:  256,
			JobTimeout: 45 * time.Second,
			HistoryTTL: time.Hour,
		},
		Search: SearchConfig{Index: "properties"},
		Observability: ObservabilityConfig{
			MetricsEnabled: true,
			LogLevel:       "info",
			LogFormat:      "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order. A .env file in the working directory is read
// first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("APP_ENV", &c.Server.Env)
	integer("PORT", &c.Server.Port)
	integer("RATE_LIMIT_PER_SECOND", &c.Server.RateLimitPerSecond)
	integer("RATE_LIMIT_BURST", &c.Server.RateLimitBurst)
	duration("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	if v := os.Getenv("PUBLIC_WEB_ORIGIN"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	str("DATABASE_URL", &c.Database.URL)
	str("DB_HOST", &c.Database.Host)
	integer("DB_PORT", &c.Database.Port)
	str("DB_USER", &c.Database.User)
	str("DB_PASSWORD", &c.Database.Password)
	str("DB_NAME", &c.Database.Name)
	str("DB_SSLMODE", &c.Database.SSLMode)

	str("JWT_SECRET", &c.Auth.JWTSecret)

	str("OVERPASS_URL", &c.Overpass.URL)
	duration("OVERPASS_TIMEOUT", &c.Overpass.Timeout)
	integer("POI_RADIUS_METERS", &c.Overpass.RadiusMeters)
	integer("POI_LIMIT_PER_CATEGORY", &c.Overpass.LimitPerCategory)
	str("POI_LOCALE", &c.Overpass.Locale)

	boolean("ENRICH_ENABLED", &c.Enrichment.Enabled)
	integer("ENRICH_WORKERS", &c.Enrichment.Workers)
	integer("ENRICH_QUEUE_SIZE", &c.Enrichment.QueueSize)
	duration("ENRICH_JOB_TIMEOUT", &c.Enrichment.JobTimeout)

	str("ELASTICSEARCH_URL", &c.Search.ElasticURL)
	str("ELASTICSEARCH_INDEX", &c.Search.Index)

	str("REDIS_URL", &c.Redis.URL)

	boolean("METRICS_ENABLED", &c.Observability.MetricsEnabled)
	str("LOG_LEVEL", &c.Observability.LogLevel)
	str("LOG_FORMAT", &c.Observability.LogFormat)

	return errors.Join(errs...)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN() == "" {
		errs = append(errs, errors.New("database: DATABASE_URL or DB_HOST is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth: JWT_SECRET is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server: invalid port %d", c.Server.Port))
	}
	if c.Overpass.Locale != "ar" && c.Overpass.Locale != "en" {
		errs = append(errs, fmt.Errorf("overpass: unsupported locale %q", c.Overpass.Locale))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
