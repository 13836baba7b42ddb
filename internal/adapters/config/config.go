package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"finsight/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	AI            AIConfig
	Crypto        CryptoConfig
	MarketData    MarketDataConfig
	News          NewsConfig
	FundFlow      FundFlowConfig
	ErrorTracking ErrorTrackingConfig
	Tasks         TaskConfig
	Agent         AgentConfig
	Indicators    IndicatorConfig
	Listener      ListenerConfig
}

type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"finsight"`
	Env         string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// PostgresConfig is optional; without a host run records are only logged
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"finsight"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	Database string `envconfig:"POSTGRES_DB" default:"finsight"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) Enabled() bool { return c.Host != "" }

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Host     string `envconfig:"CLICKHOUSE_HOST"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"market"`
}

func (c ClickHouseConfig) Enabled() bool { return c.Host != "" }

type RedisConfig struct {
	Host     string        `envconfig:"REDIS_HOST"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	QuoteTTL time.Duration `envconfig:"REDIS_QUOTE_TTL" default:"72h"`
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Brokers   []string `envconfig:"KAFKA_BROKERS"`
	TaskTopic string   `envconfig:"KAFKA_TASK_TOPIC" default:"finsight.tasks"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type AIConfig struct {
	// EncryptedKeys maps provider id to a base64 AES-GCM sealed API key
	EncryptedKeys map[string]string `envconfig:"AI_ENCRYPTED_KEYS"`
	OpenAIBaseURL string            `envconfig:"OPENAI_BASE_URL"`
	GeminiBaseURL string            `envconfig:"GEMINI_BASE_URL"`
	Timeout       time.Duration     `envconfig:"AI_TIMEOUT" default:"90s"`
	ReqPerMinute  float64           `envconfig:"AI_REQ_PER_MINUTE" default:"30"`
	Burst         int               `envconfig:"AI_BURST" default:"3"`
}

type CryptoConfig struct {
	EncryptionKey string `envconfig:"ENCRYPTION_KEY"` // 32 bytes for AES-256
}

type MarketDataConfig struct {
	Timeout time.Duration `envconfig:"MARKET_DATA_TIMEOUT" default:"15s"`
}

type NewsConfig struct {
	FinnhubBaseURL string        `envconfig:"FINNHUB_BASE_URL" default:"https://finnhub.io/api/v1"`
	FinnhubAPIKey  string        `envconfig:"FINNHUB_API_KEY"`
	Timeout        time.Duration `envconfig:"NEWS_TIMEOUT" default:"20s"`
}

type FundFlowConfig struct {
	BaseURL string        `envconfig:"FUND_FLOW_BASE_URL"`
	APIKey  string        `envconfig:"FUND_FLOW_API_KEY"`
	Timeout time.Duration `envconfig:"FUND_FLOW_TIMEOUT" default:"15s"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
	Release     string `envconfig:"SENTRY_RELEASE"`
}

// TaskConfig bounds the in-memory task managers
type TaskConfig struct {
	Capacity      int           `envconfig:"TASK_CAPACITY" default:"200"`
	MaxConcurrent int           `envconfig:"TASK_MAX_CONCURRENT" default:"4"`
	ShutdownWait  time.Duration `envconfig:"TASK_SHUTDOWN_WAIT" default:"30s"`
}

// AgentConfig bounds the orchestrator loop
type AgentConfig struct {
	MaxToolIterations  int           `envconfig:"AGENT_MAX_TOOL_ITERATIONS" default:"3"`
	ProviderMaxRetries int           `envconfig:"AGENT_PROVIDER_MAX_RETRIES" default:"1"`
	RetryBackoff       time.Duration `envconfig:"AGENT_RETRY_BACKOFF" default:"500ms"`
	ToolTimeout        time.Duration `envconfig:"AGENT_TOOL_TIMEOUT" default:"30s"`
	ModelTimeout       time.Duration `envconfig:"AGENT_MODEL_TIMEOUT" default:"120s"`
}

// MaxRetries caps configured retries at two
func (c AgentConfig) MaxRetries() int {
	switch {
	case c.ProviderMaxRetries < 0:
		return 0
	case c.ProviderMaxRetries > 2:
		return 2
	default:
		return c.ProviderMaxRetries
	}
}

type IndicatorConfig struct {
	Backends []string `envconfig:"INDICATOR_BACKENDS" default:"talib,decimal,builtin"`
}

type ListenerConfig struct {
	Interval        time.Duration `envconfig:"LISTENER_INTERVAL" default:"30m"`
	ArchiveInterval time.Duration `envconfig:"KLINE_ARCHIVE_INTERVAL" default:"6h"`
	ArchiveDays     int           `envconfig:"KLINE_ARCHIVE_DAYS" default:"60"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
