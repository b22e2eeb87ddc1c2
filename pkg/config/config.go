// Package config loads and validates application configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Server, Postgres, Kafka, Redis, Index, Search, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Index    IndexConfig    `yaml:"index"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds connection parameters for the document metadata store.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete   string `yaml:"indexComplete"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and query-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// IndexConfig describes where a shard server finds its on-disk tables and
// which slice of the corpus it owns. ShardCount is shared with the offline
// pipeline: the partition formula docid mod ShardCount and the number of
// broadcast targets must always agree.
type IndexConfig struct {
	ShardID        int    `yaml:"shardId"`
	ShardCount     int    `yaml:"shardCount"`
	DataDir        string `yaml:"dataDir"`
	StopwordsPath  string `yaml:"stopwordsPath"`
	PageRankPath   string `yaml:"pagerankPath"`
	EmbeddingsPath string `yaml:"embeddingsPath"`
	EmbedderURL    string `yaml:"embedderUrl"`
	DocIDAttribute string `yaml:"docidAttribute"`
}

// IndexPath returns the shard's inverted index file path.
func (i IndexConfig) IndexPath() string {
	return fmt.Sprintf("%s/inverted_index_%d.txt", strings.TrimRight(i.DataDir, "/"), i.ShardID)
}

// SearchConfig controls the aggregator's fan-out and result limits.
type SearchConfig struct {
	ShardURLs    []string      `yaml:"shardUrls"`
	ShardTimeout time.Duration `yaml:"shardTimeout"`
	TopK         int           `yaml:"topK"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if cfg.Index.ShardCount <= 0 {
		return nil, fmt.Errorf("index.shardCount must be positive, got %d", cfg.Index.ShardCount)
	}
	if cfg.Index.ShardID < 0 || cfg.Index.ShardID >= cfg.Index.ShardCount {
		return nil, fmt.Errorf("index.shardId %d out of range [0, %d)", cfg.Index.ShardID, cfg.Index.ShardCount)
	}
	return cfg, nil
}

// defaultConfig returns a Config matching the reference three-shard local
// deployment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "wikisearch",
			User:            "wikisearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "wikisearch-group",
			Topics: KafkaTopics{
				IndexComplete:   "index.complete",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Index: IndexConfig{
			ShardID:        0,
			ShardCount:     3,
			DataDir:        "var/index",
			StopwordsPath:  "var/index/stopwords.txt",
			PageRankPath:   "var/index/pagerank.out",
			DocIDAttribute: "docid",
		},
		Search: SearchConfig{
			ShardURLs: []string{
				"http://localhost:9000/api/v1/hits/",
				"http://localhost:9001/api/v1/hits/",
				"http://localhost:9002/api/v1/hits/",
			},
			ShardTimeout: 5 * time.Second,
			TopK:         10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads WS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("WS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("WS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("WS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("WS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("WS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("WS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("WS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("WS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("WS_INDEX_SHARD_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Index.ShardID = id
		}
	}
	if v := os.Getenv("WS_INDEX_SHARD_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.ShardCount = n
		}
	}
	if v := os.Getenv("WS_INDEX_DATA_DIR"); v != "" {
		cfg.Index.DataDir = v
	}
	if v := os.Getenv("WS_INDEX_EMBEDDER_URL"); v != "" {
		cfg.Index.EmbedderURL = v
	}
	if v := os.Getenv("WS_SEARCH_SHARD_URLS"); v != "" {
		cfg.Search.ShardURLs = strings.Split(v, ",")
	}
	if v := os.Getenv("WS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("WS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
