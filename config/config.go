package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cryptostream/internal/model"
)

type Config struct {
	App       AppConfig        `yaml:"app"`
	Logging   LoggingConfig    `yaml:"logging"`
	Session   SessionConfig    `yaml:"session"`
	Channels  ChannelsConfig   `yaml:"channels"`
	Pipeline  PipelineConfig   `yaml:"pipeline"`
	Exchanges []ExchangeConfig `yaml:"exchanges"`
	Snapshots SnapshotsConfig  `yaml:"snapshots"`
	Catalog   CatalogConfig    `yaml:"catalog"`
	Sink      SinkConfig       `yaml:"sink"`
	Kafka     KafkaConfig      `yaml:"kafka"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Status    StatusConfig     `yaml:"status"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	DashboardName string `yaml:"dashboard_name"`
	// ReportInterval paces the runtime report when level is "report".
	ReportInterval time.Duration `yaml:"report_interval"`
}

type BackoffConfig struct {
	Min    time.Duration `yaml:"min"`
	Max    time.Duration `yaml:"max"`
	Factor float64       `yaml:"factor"`
	Jitter float64       `yaml:"jitter"`
}

type SessionConfig struct {
	Backoff          BackoffConfig `yaml:"backoff"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	MaxAttempts      int           `yaml:"max_attempts"`
	BufferSize       int           `yaml:"buffer_size"`
	ReadBufferBytes  int           `yaml:"read_buffer_bytes"`
}

type ChannelsConfig struct {
	RawBuffer      int           `yaml:"raw_buffer"`
	NormBuffer     int           `yaml:"norm_buffer"`
	DropWhenFull   bool          `yaml:"drop_when_full"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

type PipelineConfig struct {
	Workers int `yaml:"workers"`
	// Symbols restricts normalized output; empty keeps everything.
	Symbols []string `yaml:"symbols"`
}

type SubscriptionConfig struct {
	Kind    string   `yaml:"kind"`
	Symbols []string `yaml:"symbols"`
}

// ExchangeConfig describes one WebSocket session.
type ExchangeConfig struct {
	Name          string               `yaml:"name"`
	MarketType    string               `yaml:"market_type"`
	URL           string               `yaml:"url"`
	LocalIP       string               `yaml:"local_ip"`
	MaxSymbols    int                  `yaml:"max_symbols"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
	// Channels are raw exchange channel names subscribed verbatim.
	Channels []string `yaml:"channels"`
	// Notification connects to huobi's notification endpoint, the only
	// place it pushes funding rates.
	Notification bool `yaml:"notification"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size"`
}

type SnapshotTarget struct {
	Exchange   string        `yaml:"exchange"`
	MarketType string        `yaml:"market_type"`
	Symbols    []string      `yaml:"symbols"`
	Interval   time.Duration `yaml:"interval"`
	Limit      int           `yaml:"limit"`
	BaseURL    string        `yaml:"base_url"`
}

type SnapshotsConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	Timeout        time.Duration        `yaml:"timeout"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Targets        []SnapshotTarget     `yaml:"targets"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
}

type SinkConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	// Log writes records to the application log in addition to Kafka.
	Log bool `yaml:"log"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	RequiredAcks string        `yaml:"required_acks"`
	Compression  string        `yaml:"compression"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

type MetricsConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Address    string           `yaml:"address"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

// StatusConfig controls the HTTP status server.
type StatusConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	LogHistory      int           `yaml:"log_history"`
	ResourceHistory int           `yaml:"resource_history"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

func defaults() Config {
	return Config{
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "json",
			Output:         "stdout",
			ReportInterval: time.Minute,
		},
		Session: SessionConfig{
			Backoff: BackoffConfig{
				Min:    500 * time.Millisecond,
				Max:    30 * time.Second,
				Factor: 2,
				Jitter: 0.2,
			},
			ReadTimeout:      30 * time.Second,
			HandshakeTimeout: 10 * time.Second,
			BufferSize:       1024,
		},
		Channels: ChannelsConfig{
			RawBuffer:      10000,
			NormBuffer:     10000,
			ReportInterval: 30 * time.Second,
		},
		Pipeline: PipelineConfig{Workers: 4},
		Snapshots: SnapshotsConfig{
			Timeout: 10 * time.Second,
			ConnectionPool: ConnectionPoolConfig{
				MaxIdleConns:    10,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 90 * time.Second,
			},
			RateLimit: RateLimitConfig{RequestsPerSecond: 5, BurstSize: 1},
		},
		Sink: SinkConfig{
			BatchSize:     100,
			FlushInterval: time.Second,
		},
		Kafka: KafkaConfig{
			BatchTimeout: 100 * time.Millisecond,
			RequiredAcks: "one",
		},
		Metrics: MetricsConfig{
			Address:    ":9090",
			CloudWatch: CloudWatchConfig{Namespace: "CryptoStream"},
		},
		Status: StatusConfig{
			Address:         ":8081",
			LogHistory:      200,
			ResourceHistory: 120,
			RefreshInterval: 5 * time.Second,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaults()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// applyEnv lets deployments override a few settings without editing the file.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Kafka.Brokers = brokers
		cfg.Kafka.Enabled = len(brokers) > 0
	}
	if v := strings.TrimSpace(os.Getenv("KAFKA_TOPIC")); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := strings.TrimSpace(os.Getenv("AWS_REGION")); v != "" {
		cfg.Metrics.CloudWatch.Region = v
	}
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if cfg.App.Version == "" {
		return fmt.Errorf("app.version is required")
	}

	if cfg.Channels.RawBuffer <= 0 {
		return fmt.Errorf("channels.raw_buffer must be greater than 0")
	}
	if cfg.Channels.NormBuffer <= 0 {
		return fmt.Errorf("channels.norm_buffer must be greater than 0")
	}
	if cfg.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be greater than 0")
	}

	b := cfg.Session.Backoff
	if b.Min <= 0 || b.Max < b.Min {
		return fmt.Errorf("session.backoff requires 0 < min <= max")
	}
	if b.Factor < 1 {
		return fmt.Errorf("session.backoff.factor must be at least 1")
	}
	if b.Jitter < 0 || b.Jitter > 1 {
		return fmt.Errorf("session.backoff.jitter must be between 0 and 1")
	}
	if cfg.Session.MaxAttempts < 0 {
		return fmt.Errorf("session.max_attempts must not be negative")
	}

	if len(cfg.Exchanges) == 0 && !cfg.Snapshots.Enabled {
		return fmt.Errorf("at least one exchange or snapshot target is required")
	}
	for i, ex := range cfg.Exchanges {
		if ex.Name == "" {
			return fmt.Errorf("exchanges[%d].name is required", i)
		}
		if _, err := model.ParseMarketType(ex.MarketType); err != nil {
			return fmt.Errorf("exchanges[%d].market_type: %w", i, err)
		}
		if ex.Notification && !strings.EqualFold(ex.Name, "huobi") {
			return fmt.Errorf("exchanges[%d].notification is only supported for huobi", i)
		}
		if len(ex.Subscriptions) == 0 && len(ex.Channels) == 0 {
			return fmt.Errorf("exchanges[%d] (%s %s) has no subscriptions", i, ex.Name, ex.MarketType)
		}
		for j, sub := range ex.Subscriptions {
			if _, err := model.ParseMessageType(sub.Kind); err != nil {
				return fmt.Errorf("exchanges[%d].subscriptions[%d].kind: %w", i, j, err)
			}
			if len(sub.Symbols) == 0 {
				return fmt.Errorf("exchanges[%d].subscriptions[%d].symbols must not be empty", i, j)
			}
		}
	}

	if cfg.Snapshots.Enabled {
		if len(cfg.Snapshots.Targets) == 0 {
			return fmt.Errorf("snapshots.targets is required when snapshots are enabled")
		}
		for i, t := range cfg.Snapshots.Targets {
			if t.Exchange == "" {
				return fmt.Errorf("snapshots.targets[%d].exchange is required", i)
			}
			if _, err := model.ParseMarketType(t.MarketType); err != nil {
				return fmt.Errorf("snapshots.targets[%d].market_type: %w", i, err)
			}
			if t.Interval <= 0 {
				return fmt.Errorf("snapshots.targets[%d].interval must be greater than 0", i)
			}
			if len(t.Symbols) == 0 {
				return fmt.Errorf("snapshots.targets[%d].symbols must not be empty", i)
			}
		}
	}

	if cfg.Kafka.Enabled {
		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required when kafka is enabled")
		}
		if cfg.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}

	if cfg.Status.Enabled && cfg.Metrics.Enabled && cfg.Status.Address == cfg.Metrics.Address {
		return fmt.Errorf("status.address must differ from metrics.address")
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Region == "" {
		return fmt.Errorf("metrics.cloudwatch.region is required when cloudwatch is enabled")
	}

	return nil
}
