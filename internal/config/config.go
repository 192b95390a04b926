package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the auctions service. It is loaded once
// at process start and passed explicitly to collaborators; nothing reads the
// environment after Load returns.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Auth     AuthConfig     `yaml:"auth"`
	Worker   WorkerConfig   `yaml:"worker"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL connection settings. URL wins when set;
// otherwise a DSN is assembled from the discrete POSTGRES_* parts.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	// Startup gating: how long to keep retrying the initial ping before the
	// process gives up with a distinct exit code.
	WaitAttempts int           `yaml:"wait_attempts"`
	WaitInterval time.Duration `yaml:"wait_interval"`
}

// DSN returns the connection string for lib/pq.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode)
}

// RedisConfig holds settings for the cache/broker service. BlacklistDB is the
// logical database the accounts service writes blacklisted tokens into.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	BlacklistDB int    `yaml:"blacklist_db"`
}

// RabbitMQConfig holds settings for the accounts-service event bridge.
// Disabled by default; the deployment manifest runs three services only.
type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
	Queue    string `yaml:"queue"`
}

// AuthConfig holds JWT verification settings. The RSA public key belongs to
// the external accounts service that issues access tokens.
type AuthConfig struct {
	RSAPublicKey string `yaml:"rsa_public_key"`
}

// WorkerConfig holds background processing settings.
type WorkerConfig struct {
	CompleteInterval time.Duration `yaml:"complete_interval"`
	BatchSize        int           `yaml:"batch_size"`
	RevokeQueue      string        `yaml:"revoke_queue"`
}

// Load reads the optional YAML file, layers .env (if present) and process
// environment overrides on top, and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// .env is optional; real deployments inject env through the orchestrator.
	_ = godotenv.Load()
	applyEnv(cfg)

	if cfg.Server.Port <= 0 {
		return nil, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.Database.WaitAttempts < 1 {
		cfg.Database.WaitAttempts = 1
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8001},
		Database: DatabaseConfig{
			Host:         "db",
			Port:         5432,
			SSLMode:      "disable",
			WaitAttempts: 30,
			WaitInterval: 2 * time.Second,
		},
		Redis:    RedisConfig{Addr: "cache:6379", BlacklistDB: 1},
		RabbitMQ: RabbitMQConfig{Exchange: "accounts", Queue: "auctions.accounts"},
		Worker: WorkerConfig{
			CompleteInterval: time.Minute,
			BatchSize:        1000,
			RevokeQueue:      "auctions:revoke",
		},
		LogLevel: "info",
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.Host, "POSTGRES_HOST")
	setInt(&cfg.Database.Port, "POSTGRES_PORT")
	setString(&cfg.Database.Name, "POSTGRES_DB")
	setString(&cfg.Database.User, "POSTGRES_USER")
	setString(&cfg.Database.Password, "POSTGRES_PASSWORD")
	setInt(&cfg.Database.WaitAttempts, "DB_WAIT_ATTEMPTS")
	setDuration(&cfg.Database.WaitInterval, "DB_WAIT_INTERVAL")

	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")
	setInt(&cfg.Redis.BlacklistDB, "REDIS_BLACKLIST_DB")

	setBool(&cfg.RabbitMQ.Enabled, "RABBITMQ_ENABLED")
	setString(&cfg.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&cfg.RabbitMQ.Exchange, "RABBITMQ_EXCHANGE")
	setString(&cfg.RabbitMQ.Queue, "RABBITMQ_QUEUE")

	setString(&cfg.Auth.RSAPublicKey, "RSA_PUBLIC_KEY")

	setString(&cfg.LogLevel, "LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
