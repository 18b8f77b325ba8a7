package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRANSCRIBE_TEST_DB_PASSWORD", "s3cret")
			t.Setenv("TRANSCRIBE_TEST_ANTHROPIC_KEY", "sk-test")

			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "transcribe-api", cfg.App.Name)
			assert.Equal(t, DriverPostgres, cfg.Database.Driver)
			assert.True(t, cfg.Database.AutoMigrate)
			assert.Equal(t, "transcribe_db", cfg.Database.Database)
			assert.Equal(t, "s3cret", cfg.Database.Password)
			assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
			assert.True(t, cfg.RabbitMQ.Enabled)
			assert.Equal(t, "transcription_events", cfg.RabbitMQ.Exchange.Name)
			assert.Equal(t, 4, cfg.RabbitMQ.Publish.RetryAttempts)
			assert.Equal(t, 30*time.Minute, cfg.Storage.SignedURLTTL)
			assert.Equal(t, "shared", cfg.Processor.CallbackSecret)
			assert.Equal(t, "sk-test", cfg.Summary.APIKey)
		})
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	t.Setenv("TRANSCRIBE_TEST_ANTHROPIC_KEY", "")

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "audio", cfg.Storage.Bucket)
	assert.Equal(t, 10*time.Second, cfg.Processor.HandoffTimeout)
	assert.Equal(t, ProviderAnthropic, cfg.Summary.Provider)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Summary.Model)
	assert.Equal(t, 2048, cfg.Summary.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.Summary.Timeout)
	assert.Empty(t, cfg.Summary.APIKey)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Greater(t, cfg.Server.WriteTimeout, cfg.Summary.Timeout)
	assert.Equal(t, 2*time.Second, cfg.RabbitMQ.Connection.RetryInterval)
	assert.Equal(t, 2.0, cfg.RabbitMQ.Publish.BackoffMultiplier)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Storage:   StorageConfig{Bucket: "recordings", SignedURLTTL: 5 * time.Minute},
		Processor: ProcessorConfig{HandoffTimeout: 3 * time.Second},
		Summary:   SummaryConfig{Provider: ProviderNone, MaxTokens: 512},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "recordings", cfg.Storage.Bucket)
	assert.Equal(t, 5*time.Minute, cfg.Storage.SignedURLTTL)
	assert.Equal(t, 3*time.Second, cfg.Processor.HandoffTimeout)
	assert.Equal(t, ProviderNone, cfg.Summary.Provider)
	assert.Equal(t, 512, cfg.Summary.MaxTokens)
}

func validConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver:   DriverPostgres,
			Host:     "localhost",
			Port:     5432,
			Database: "transcribe_db",
		},
		RabbitMQ: RabbitMQConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     5672,
			Exchange: ExchangeConfig{Name: "transcription_events"},
		},
		Auth: AuthConfig{JWTSecret: "secret"},
		Storage: StorageConfig{
			URL:        "https://project.supabase.co",
			ServiceKey: "service-key",
		},
		Processor: ProcessorConfig{
			BaseURL:     "http://worker:9000",
			CallbackURL: "http://api:8080/api/v1/process-callback",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		errString string
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{
			name:   "memory driver needs no connection",
			mutate: func(c *Config) { c.Database = DatabaseConfig{Driver: DriverMemory} },
		},
		{
			name:   "rabbitmq disabled needs no host",
			mutate: func(c *Config) { c.RabbitMQ = RabbitMQConfig{} },
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			errString: "invalid server port",
		},
		{
			name:      "unknown database driver",
			mutate:    func(c *Config) { c.Database.Driver = "sqlite" },
			errString: "invalid database driver",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			errString: "database name is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "missing jwt secret",
			mutate:    func(c *Config) { c.Auth.JWTSecret = "" },
			errString: "auth jwt_secret is required",
		},
		{
			name:      "missing storage url",
			mutate:    func(c *Config) { c.Storage.URL = "" },
			errString: "storage url is required",
		},
		{
			name:      "missing storage key",
			mutate:    func(c *Config) { c.Storage.ServiceKey = "" },
			errString: "storage service_key is required",
		},
		{
			name:      "missing processor url",
			mutate:    func(c *Config) { c.Processor.BaseURL = "" },
			errString: "processor base_url is required",
		},
		{
			name:      "missing callback url",
			mutate:    func(c *Config) { c.Processor.CallbackURL = "" },
			errString: "processor callback_url is required",
		},
		{
			name:      "negative handoff timeout",
			mutate:    func(c *Config) { c.Processor.HandoffTimeout = -time.Second },
			errString: "processor handoff_timeout must be positive",
		},
		{
			name:      "unknown summary provider",
			mutate:    func(c *Config) { c.Summary.Provider = "openai" },
			errString: "invalid summary provider",
		},
		{
			name:      "write timeout shorter than summary",
			mutate:    func(c *Config) { c.Server.WriteTimeout = 30 * time.Second },
			errString: "server write_timeout 30s must exceed summary timeout 1m0s",
		},
		{
			name:   "write timeout irrelevant without summaries",
			mutate: func(c *Config) {
				c.Server.WriteTimeout = 30 * time.Second
				c.Summary.Provider = ProviderNone
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.errString != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NoError(t, cfg.Validate())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}
