// Package config loads service settings from defaults, an optional TOML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/idkosilov/furniture/internal/infrastructure/store"
)

const minJWTSecretLength = 32

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Database      DatabaseConfig      `toml:"database"`
	Kafka         KafkaConfig         `toml:"kafka"`
	Redis         RedisConfig         `toml:"redis"`
	SMTP          SMTPConfig          `toml:"smtp"`
	HTTP          HTTPConfig          `toml:"http"`
	Auth          AuthConfig          `toml:"auth"`
	Log           LogConfig           `toml:"log"`
	Observability ObservabilityConfig `toml:"observability"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"`
	URL    string `toml:"url"`
}

type KafkaConfig struct {
	Brokers       []string `toml:"brokers"`
	InboundTopic  string   `toml:"inbound_topic"`
	OutboundTopic string   `toml:"outbound_topic"`
	ConsumerGroup string   `toml:"consumer_group"`
}

// Enabled reports whether a broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type RedisConfig struct {
	Addr string `toml:"addr"`
}

type SMTPConfig struct {
	Host string `toml:"host"`
	Port string `toml:"port"`
	From string `toml:"from"`
}

type HTTPConfig struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret   string   `toml:"jwt_secret"`
	TokenExpiry Duration `toml:"token_expiry"`
}

// Duration reads Go duration strings such as "5s" from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ObservabilityConfig struct {
	OtelEndpoint string `toml:"otel_endpoint"`
	ServiceName  string `toml:"service_name"`
}

// Default returns a config that runs locally against SQLite with every
// optional integration switched off.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			URL:    "furniture.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		},
		Kafka: KafkaConfig{
			InboundTopic:  "allocation-commands",
			OutboundTopic: "allocation-events",
			ConsumerGroup: "allocation-service",
		},
		SMTP: SMTPConfig{
			Port: "25",
			From: "allocation@made.com",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{5 * time.Second},
		},
		Auth: AuthConfig{
			TokenExpiry: Duration{24 * time.Hour},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			ServiceName: "furniture-allocation",
		},
	}
}

// Load builds the config. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DATABASE_DRIVER", c.Database.Driver)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	c.Kafka.InboundTopic = getEnv("KAFKA_TOPIC_IN", c.Kafka.InboundTopic)
	c.Kafka.OutboundTopic = getEnv("KAFKA_TOPIC_OUT", c.Kafka.OutboundTopic)
	c.Kafka.ConsumerGroup = getEnv("KAFKA_CONSUMER_GROUP", c.Kafka.ConsumerGroup)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.SMTP.Host = getEnv("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = getEnv("SMTP_PORT", c.SMTP.Port)
	c.SMTP.From = getEnv("SMTP_FROM", c.SMTP.From)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Observability.OtelEndpoint = getEnv("OTEL_ENDPOINT", c.Observability.OtelEndpoint)
}

// Validate checks the settings every command relies on.
func (c Config) Validate() error {
	var errs []error
	if _, err := store.DialectFor(c.Database.Driver); err != nil {
		errs = append(errs, err)
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database url is required"))
	}
	if c.Kafka.Enabled() && c.Kafka.InboundTopic == "" {
		errs = append(errs, errors.New("kafka inbound topic is required when brokers are set"))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unsupported log format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidateAuth checks the signing secret used by the HTTP API and token
// issuing.
func (c Config) ValidateAuth() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: JWT_SECRET is required", ErrInvalidConfig)
	}
	if len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("%w: JWT_SECRET must be at least %d characters long", ErrInvalidConfig, minJWTSecretLength)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
