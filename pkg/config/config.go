package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"` // live or sandbox
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Engine struct {
		MinFavorableConditions int           `yaml:"min_favorable_conditions"`
		MaxConcurrency         int           `yaml:"max_concurrency"`
		CredentialTimeout      time.Duration `yaml:"credential_timeout"`
		DispatchTimeout        time.Duration `yaml:"dispatch_timeout"`
		OverallDeadline        time.Duration `yaml:"overall_deadline"`
		DrainGracePeriod       time.Duration `yaml:"drain_grace_period"`
	} `yaml:"engine"`
	Postgres struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Database string `yaml:"database"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		SSLMode  string `yaml:"ssl_mode"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Database     string        `yaml:"database"`
		User         string        `yaml:"user"`
		Password     string        `yaml:"password"`
		AsyncInsert  bool          `yaml:"async_insert"`
		WaitForAsync bool          `yaml:"wait_for_async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Vault struct {
		EncryptionKey string        `yaml:"encryption_key"` // hex or raw 32 bytes, env override
		KeyVersion    int           `yaml:"key_version"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
	} `yaml:"vault"`
	Kafka struct {
		Brokers         []string `yaml:"brokers"`
		SignalsTopic    string   `yaml:"signals_topic"`
		ExecutionsTopic string   `yaml:"executions_topic"`
		RequiredAcks    int      `yaml:"required_acks"`
		Compression     string   `yaml:"compression"`
		Consumer        struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	MarketData struct {
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		StaleAfter     time.Duration `yaml:"stale_after"`
	} `yaml:"marketdata"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("VAULT_ENCRYPTION_KEY"); v != "" {
		c.Vault.EncryptionKey = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.MinFavorableConditions == 0 {
		c.Engine.MinFavorableConditions = 2
	}
	if c.Engine.MaxConcurrency == 0 {
		c.Engine.MaxConcurrency = 16
	}
	if c.Engine.CredentialTimeout == 0 {
		c.Engine.CredentialTimeout = 2 * time.Second
	}
	if c.Engine.DispatchTimeout == 0 {
		c.Engine.DispatchTimeout = 12 * time.Second
	}
	if c.Engine.OverallDeadline == 0 {
		c.Engine.OverallDeadline = 45 * time.Second
	}
	if c.Engine.DrainGracePeriod == 0 {
		c.Engine.DrainGracePeriod = 15 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Environment != "live" && c.Environment != "sandbox" {
		return fmt.Errorf("environment must be 'live' or 'sandbox', got '%s'", c.Environment)
	}
	if c.Engine.MinFavorableConditions < 1 || c.Engine.MinFavorableConditions > 4 {
		return fmt.Errorf("engine.min_favorable_conditions must be between 1 and 4")
	}
	if c.Engine.MaxConcurrency < 1 {
		return fmt.Errorf("engine.max_concurrency must be positive")
	}
	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres.host is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Environment == "live" && c.Vault.EncryptionKey == "" {
		return fmt.Errorf("vault.encryption_key is required in live environment")
	}
	return nil
}
