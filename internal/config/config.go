package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NewRelic NewRelicConfig `yaml:"newrelic"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Auth     AuthConfig     `yaml:"auth"`
	Chat     ChatConfig     `yaml:"chat"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL configuration. An empty Host selects the
// in-memory store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a Postgres database is configured.
func (c DatabaseConfig) Enabled() bool { return c.Host != "" }

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string `yaml:"app_name"`
	LicenseKey string `yaml:"license_key"`
	Enabled    bool   `yaml:"enabled"`
}

// KafkaConfig holds the lifecycle event publisher configuration. No brokers
// disables publishing.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Auth modes.
const (
	AuthModeJWT      = "jwt"
	AuthModeFirebase = "firebase"
)

// AuthConfig selects how bearer credentials are verified.
type AuthConfig struct {
	Mode              string `yaml:"mode"`
	JWTSecret         string `yaml:"jwt_secret"`
	JWTIssuer         string `yaml:"jwt_issuer"`
	FirebaseProjectID string `yaml:"firebase_project_id"`
	FirebaseCredsFile string `yaml:"firebase_credentials_file"`
}

// ChatConfig tunes chat connections.
type ChatConfig struct {
	SendBuffer   int           `yaml:"send_buffer"`
	HistoryLimit int           `yaml:"history_limit"`
	WriteWait    time.Duration `yaml:"write_wait"`
	PongWait     time.Duration `yaml:"pong_wait"`
	PingPeriod   time.Duration `yaml:"ping_period"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{
			Port:    "5432",
			User:    "postgres",
			DBName:  "gotogether",
			SSLMode: "disable",
		},
		NewRelic: NewRelicConfig{
			AppName: "gotogether",
		},
		Kafka: KafkaConfig{
			Topic: "ride-events",
		},
		Auth: AuthConfig{
			Mode:      AuthModeJWT,
			JWTIssuer: "gotogether",
		},
		Chat: ChatConfig{
			SendBuffer:   256,
			HistoryLimit: 500,
			WriteWait:    10 * time.Second,
			PongWait:     60 * time.Second,
			PingPeriod:   54 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, and environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getDurationEnv("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getDurationEnv("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.ShutdownTimeout = getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.AllowedOrigins = getListEnv("SERVER_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getIntEnv("REDIS_DB", cfg.Redis.DB)

	cfg.NewRelic.AppName = getEnv("NEW_RELIC_APP_NAME", cfg.NewRelic.AppName)
	cfg.NewRelic.LicenseKey = getEnv("NEW_RELIC_LICENSE_KEY", cfg.NewRelic.LicenseKey)
	cfg.NewRelic.Enabled = getBoolEnv("NEW_RELIC_ENABLED", cfg.NewRelic.Enabled)

	cfg.Kafka.Brokers = getListEnv("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.Auth.Mode = strings.ToLower(getEnv("AUTH_MODE", cfg.Auth.Mode))
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTIssuer = getEnv("JWT_ISSUER", cfg.Auth.JWTIssuer)
	cfg.Auth.FirebaseProjectID = getEnv("FIREBASE_PROJECT_ID", cfg.Auth.FirebaseProjectID)
	cfg.Auth.FirebaseCredsFile = getEnv("FIREBASE_CREDENTIALS_FILE", cfg.Auth.FirebaseCredsFile)

	cfg.Chat.SendBuffer = getIntEnv("CHAT_SEND_BUFFER", cfg.Chat.SendBuffer)
	cfg.Chat.HistoryLimit = getIntEnv("CHAT_HISTORY_LIMIT", cfg.Chat.HistoryLimit)
	cfg.Chat.WriteWait = getDurationEnv("CHAT_WRITE_WAIT", cfg.Chat.WriteWait)
	cfg.Chat.PongWait = getDurationEnv("CHAT_PONG_WAIT", cfg.Chat.PongWait)
	cfg.Chat.PingPeriod = getDurationEnv("CHAT_PING_PERIOD", cfg.Chat.PingPeriod)

	cfg.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", cfg.Log.Level))
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	switch c.Auth.Mode {
	case AuthModeJWT:
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required in jwt auth mode"))
		}
	case AuthModeFirebase:
		if c.Auth.FirebaseProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required in firebase auth mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode %q", c.Auth.Mode))
	}
	if c.Chat.SendBuffer < 2 {
		errs = append(errs, errors.New("chat send buffer must be at least 2"))
	}
	if c.Chat.HistoryLimit <= 0 || c.Chat.HistoryLimit > 500 {
		errs = append(errs, errors.New("chat history limit must be between 1 and 500"))
	}
	if c.Chat.PingPeriod >= c.Chat.PongWait {
		errs = append(errs, errors.New("chat ping period must be shorter than pong wait"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka topic is required when brokers are set"))
	}
	if c.NewRelic.Enabled && c.NewRelic.LicenseKey == "" {
		errs = append(errs, errors.New("NEW_RELIC_LICENSE_KEY is required when New Relic is enabled"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
