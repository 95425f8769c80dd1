package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Provider struct {
		Type               string        `yaml:"type"` // http or clickhouse
		BaseURL            string        `yaml:"base_url"`
		APIKey             string        `yaml:"api_key"`
		BatchSize          int           `yaml:"batch_size"`
		MaxRetries         int           `yaml:"max_retries"`
		RetryBackoff       time.Duration `yaml:"retry_backoff"`
		MaxRetryBackoff    time.Duration `yaml:"max_retry_backoff"`
		RequestConcurrency int           `yaml:"request_concurrency"`
		MaxRPS             float64       `yaml:"max_rps"`
		Timeout            time.Duration `yaml:"timeout"`
		PersistBars        bool          `yaml:"persist_bars"`
	} `yaml:"provider"`
	Universe struct {
		Symbols []string `yaml:"symbols"`
		File    string   `yaml:"file"`
	} `yaml:"universe"`
	Cache struct {
		TTL           time.Duration `yaml:"ttl"`
		MemoryMaxSize int           `yaml:"memory_max_size"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		BarsTable        string        `yaml:"bars_table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalTopic  string   `yaml:"signal_topic"`
		RequestTopic string   `yaml:"request_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Scan struct {
		Concurrency    int `yaml:"concurrency"`
		MinHistoryBars int `yaml:"min_history_bars"`
	} `yaml:"scan"`
	Backtest struct {
		Workers int `yaml:"workers"`
	} `yaml:"backtest"`
	Optimizer struct {
		Workers int `yaml:"workers"`
		Queue   struct {
			Enabled bool `yaml:"enabled"`
			Workers int  `yaml:"workers"`
		} `yaml:"queue"`
	} `yaml:"optimizer"`
	Validation struct {
		ReturnDecayWeight  float64 `yaml:"return_decay_weight"`
		SharpeDecayWeight  float64 `yaml:"sharpe_decay_weight"`
		WinRateDecayWeight float64 `yaml:"win_rate_decay_weight"`
		DrawdownWeight     float64 `yaml:"drawdown_weight"`
		SharpeDecayConcern float64 `yaml:"sharpe_decay_concern"`
		ReturnDecayConcern float64 `yaml:"return_decay_concern"`
	} `yaml:"validation"`
	Results struct {
		TTL time.Duration `yaml:"ttl"`
		Max int           `yaml:"max"`
	} `yaml:"results"`
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

	// Validate required fields
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

	// Override with environment variables
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("UNIVERSE_SYMBOLS"); v != "" {
		c.Universe.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Provider.BatchSize <= 0 {
		c.Provider.BatchSize = 500
	}
	if c.Provider.MaxRetries <= 0 {
		c.Provider.MaxRetries = 3
	}
	if c.Provider.RetryBackoff <= 0 {
		c.Provider.RetryBackoff = 250 * time.Millisecond
	}
	if c.Provider.MaxRetryBackoff <= 0 {
		c.Provider.MaxRetryBackoff = 5 * time.Second
	}
	if c.Provider.RequestConcurrency <= 0 {
		c.Provider.RequestConcurrency = 4
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = 30 * time.Second
	}
	if c.Scan.Concurrency <= 0 {
		c.Scan.Concurrency = 16
	}
	if c.Scan.MinHistoryBars <= 0 {
		c.Scan.MinHistoryBars = 30
	}
	if c.Backtest.Workers <= 0 {
		c.Backtest.Workers = 4
	}
	if c.Optimizer.Workers <= 0 {
		c.Optimizer.Workers = 4
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 15 * time.Minute
	}
	if c.Cache.MemoryMaxSize <= 0 {
		c.Cache.MemoryMaxSize = 256
	}
	if c.Results.TTL <= 0 {
		c.Results.TTL = 4 * time.Hour
	}
	if c.Results.Max <= 0 {
		c.Results.Max = 256
	}
	if c.Validation.ReturnDecayWeight == 0 && c.Validation.SharpeDecayWeight == 0 &&
		c.Validation.WinRateDecayWeight == 0 && c.Validation.DrawdownWeight == 0 {
		c.Validation.ReturnDecayWeight = 0.3
		c.Validation.SharpeDecayWeight = 0.3
		c.Validation.WinRateDecayWeight = 0.2
		c.Validation.DrawdownWeight = 0.2
	}
	if c.Validation.SharpeDecayConcern <= 0 {
		c.Validation.SharpeDecayConcern = 0.4
	}
	if c.Validation.ReturnDecayConcern <= 0 {
		c.Validation.ReturnDecayConcern = 0.3
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Provider.Type == "" {
		return fmt.Errorf("provider.type is required")
	}
	if c.Provider.Type != "http" && c.Provider.Type != "clickhouse" {
		return fmt.Errorf("provider.type must be 'http' or 'clickhouse', got '%s'", c.Provider.Type)
	}
	if c.Provider.Type == "http" && c.Provider.BaseURL == "" {
		return fmt.Errorf("provider.base_url is required for http provider")
	}
	if c.Provider.Type == "clickhouse" && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required for clickhouse provider")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Optimizer.Queue.Enabled && !c.Cache.Redis.Enabled {
		return fmt.Errorf("optimizer.queue requires cache.redis to be enabled")
	}
	return nil
}
