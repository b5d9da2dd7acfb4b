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
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Provider struct {
		APIKey         string        `yaml:"api_key"`
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		StreamEnabled  bool          `yaml:"stream_enabled"`
		Symbols        []string      `yaml:"symbols"`
		Benchmark      string        `yaml:"benchmark"`
		BatchLimit     int           `yaml:"batch_limit"`
		Timeout        time.Duration `yaml:"timeout"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		RateLimit      struct {
			Budget int           `yaml:"budget"`
			Window time.Duration `yaml:"window"`
		} `yaml:"rate_limit"`
		Breaker struct {
			FailureThreshold int           `yaml:"failure_threshold"`
			RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`
		} `yaml:"breaker"`
		Retry struct {
			MaxRetries int           `yaml:"max_retries"`
			BaseDelay  time.Duration `yaml:"base_delay"`
		} `yaml:"retry"`
		CacheTTL struct {
			Prices time.Duration `yaml:"prices"`
			Quotes time.Duration `yaml:"quotes"`
			FX     time.Duration `yaml:"fx"`
		} `yaml:"cache_ttl"`
	} `yaml:"provider"`
	Strategy struct {
		DailyDropThreshold  float64 `yaml:"daily_drop_threshold"`
		MaxDailyReturn      float64 `yaml:"max_daily_return"`
		MinDailyReturn      float64 `yaml:"min_daily_return"`
		OutlierStdThreshold float64 `yaml:"outlier_std_threshold"`
		RebalanceFrequency  string  `yaml:"rebalance_frequency"`
		MinPriceThreshold   float64 `yaml:"min_price_threshold"`
	} `yaml:"strategy"`
	Performance struct {
		RiskFreeRate float64 `yaml:"risk_free_rate"`
	} `yaml:"performance"`
	Refresh struct {
		Interval  time.Duration `yaml:"interval"`
		Timeout   time.Duration `yaml:"timeout"`
		Lookback  time.Duration `yaml:"lookback"`
		Retention time.Duration `yaml:"retention"`
		Workers   int           `yaml:"workers"`
	} `yaml:"refresh"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		Linger       time.Duration `yaml:"linger"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
	} `yaml:"kafka"`
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

	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Provider.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("BENCHMARK"); v != "" {
		c.Provider.Benchmark = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider.api_key is required")
	}
	if len(c.Provider.Symbols) == 0 {
		return fmt.Errorf("provider.symbols cannot be empty")
	}
	if c.Provider.BatchLimit <= 0 {
		c.Provider.BatchLimit = 8
	}
	if c.Provider.RateLimit.Budget <= 0 {
		return fmt.Errorf("provider.rate_limit.budget must be positive")
	}
	if c.Provider.RateLimit.Window <= 0 {
		c.Provider.RateLimit.Window = time.Minute
	}
	if c.Provider.Breaker.FailureThreshold <= 0 {
		c.Provider.Breaker.FailureThreshold = 5
	}
	if c.Provider.Breaker.RecoveryTimeout <= 0 {
		c.Provider.Breaker.RecoveryTimeout = time.Minute
	}
	if c.Provider.Retry.MaxRetries < 0 {
		return fmt.Errorf("provider.retry.max_retries cannot be negative")
	}
	if c.Provider.Retry.BaseDelay <= 0 {
		c.Provider.Retry.BaseDelay = time.Second
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when kafka.enabled")
	}
	if c.Refresh.Timeout <= 0 {
		c.Refresh.Timeout = 5 * time.Minute
	}
	if c.Refresh.Lookback <= 0 {
		c.Refresh.Lookback = 365 * 24 * time.Hour
	}
	return nil
}

// StrategyParams returns the engine parameter bag with defaults applied.
func (c *Config) StrategyParams() (dropThreshold, maxRet, minRet, outlierStd, minPrice float64) {
	dropThreshold = c.Strategy.DailyDropThreshold
	maxRet = c.Strategy.MaxDailyReturn
	if maxRet == 0 {
		maxRet = 0.5
	}
	minRet = c.Strategy.MinDailyReturn
	if minRet == 0 {
		minRet = -0.5
	}
	outlierStd = c.Strategy.OutlierStdThreshold
	if outlierStd == 0 {
		outlierStd = 4
	}
	minPrice = c.Strategy.MinPriceThreshold
	return
}
