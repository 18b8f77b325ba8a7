package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Processor ProcessorConfig `yaml:"processor"`
	Summary   SummaryConfig   `yaml:"summary"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects the job store. The connection fields are used by
// the postgres driver only.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds the lifecycle event broker configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	BindingKey string           `yaml:"binding_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds an optional queue bound to the exchange
type QueueConfig struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableSource bool   `yaml:"enable_source"`
	NoColor      bool   `yaml:"no_color"`
}

// AuthConfig holds bearer token verification settings
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Audience  string `yaml:"audience"`
}

// StorageConfig holds the object storage used for uploaded audio
type StorageConfig struct {
	URL          string        `yaml:"url"`
	Bucket       string        `yaml:"bucket"`
	ServiceKey   string        `yaml:"service_key"`
	SignedURLTTL time.Duration `yaml:"signed_url_ttl"`
}

// ProcessorConfig holds the speech processing worker settings
type ProcessorConfig struct {
	BaseURL        string        `yaml:"base_url"`
	CallbackURL    string        `yaml:"callback_url"`
	HandoffTimeout time.Duration `yaml:"handoff_timeout"`
	CallbackSecret string        `yaml:"callback_secret"`
}

// SummaryConfig holds the summary generator settings
type SummaryConfig struct {
	Provider  string        `yaml:"provider"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
	BaseURL   string        `yaml:"base_url"`
}

// Load reads the configuration file, expands ${VAR} references from the
// environment and applies defaults.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills zero values with the service defaults
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "transcribe-api"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 90 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
	if c.RabbitMQ.Connection.RetryAttempts == 0 {
		c.RabbitMQ.Connection.RetryAttempts = 5
	}
	if c.RabbitMQ.Connection.RetryInterval == 0 {
		c.RabbitMQ.Connection.RetryInterval = 2 * time.Second
	}
	if c.RabbitMQ.Publish.RetryAttempts == 0 {
		c.RabbitMQ.Publish.RetryAttempts = 3
	}
	if c.RabbitMQ.Publish.RetryInterval == 0 {
		c.RabbitMQ.Publish.RetryInterval = 200 * time.Millisecond
	}
	if c.RabbitMQ.Publish.BackoffMultiplier == 0 {
		c.RabbitMQ.Publish.BackoffMultiplier = 2
	}

	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "audio"
	}
	if c.Storage.SignedURLTTL == 0 {
		c.Storage.SignedURLTTL = time.Hour
	}

	if c.Processor.HandoffTimeout == 0 {
		c.Processor.HandoffTimeout = 10 * time.Second
	}

	if c.Summary.Provider == "" {
		c.Summary.Provider = ProviderAnthropic
	}
	if c.Summary.Model == "" {
		c.Summary.Model = "claude-sonnet-4-20250514"
	}
	if c.Summary.MaxTokens == 0 {
		c.Summary.MaxTokens = 2048
	}
	if c.Summary.Timeout == 0 {
		c.Summary.Timeout = 60 * time.Second
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.Host == "" {
			return errors.New("database host is required")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return errors.New("database name is required")
		}
	default:
		return fmt.Errorf("invalid database driver: %q (must be %s or %s)", c.Database.Driver, DriverPostgres, DriverMemory)
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return errors.New("rabbitmq host is required")
		}
		if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return errors.New("rabbitmq exchange name is required")
		}
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth jwt_secret is required")
	}

	if c.Storage.URL == "" {
		return errors.New("storage url is required")
	}
	if c.Storage.ServiceKey == "" {
		return errors.New("storage service_key is required")
	}
	if c.Storage.SignedURLTTL < 0 {
		return errors.New("storage signed_url_ttl must be positive")
	}

	if c.Processor.BaseURL == "" {
		return errors.New("processor base_url is required")
	}
	if c.Processor.CallbackURL == "" {
		return errors.New("processor callback_url is required")
	}
	if c.Processor.HandoffTimeout < 0 {
		return errors.New("processor handoff_timeout must be positive")
	}

	switch c.Summary.Provider {
	case ProviderAnthropic, ProviderNone:
	default:
		return fmt.Errorf("invalid summary provider: %q (must be %s or %s)", c.Summary.Provider, ProviderAnthropic, ProviderNone)
	}
	if c.Summary.MaxTokens < 0 {
		return errors.New("summary max_tokens must be positive")
	}
	// The callback handler generates the summary inline, so the response
	// must outlive the model call.
	if c.Summary.Provider != ProviderNone && c.Server.WriteTimeout > 0 && c.Summary.Timeout > 0 &&
		c.Server.WriteTimeout <= c.Summary.Timeout {
		return fmt.Errorf("server write_timeout %s must exceed summary timeout %s", c.Server.WriteTimeout, c.Summary.Timeout)
	}

	return nil
}
