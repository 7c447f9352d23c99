package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	MailRelay MailRelayConfig `mapstructure:"mailrelay"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Rates     RatesConfig     `mapstructure:"rates"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	MaxInFlight     int64         `mapstructure:"max_in_flight"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// MySQLConfig also covers postgres when Driver is "postgres".
type MySQLConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	MailboxPrefix string `mapstructure:"mailbox_prefix"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
	// RoutingKey binds notification messages from the ledger to the relay.
	RoutingKey string `mapstructure:"routing_key"`
}

// NotifierConfig selects how the ledger hands emails off: "http" posts to
// the mail relay, "amqp" queues them, "log" only logs.
type NotifierConfig struct {
	Driver          string        `mapstructure:"driver"`
	RelayURL        string        `mapstructure:"relay_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

type MailRelayConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SMTPHost       string   `mapstructure:"smtp_host"`
	SMTPPort       int      `mapstructure:"smtp_port"`
	SMTPUser       string   `mapstructure:"smtp_user"`
	SMTPPassword   string   `mapstructure:"smtp_password"`
	From           string   `mapstructure:"from"`
	ConsumeQueue   bool     `mapstructure:"consume_queue"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LedgerConfig struct {
	RoutingCode          string        `mapstructure:"routing_code"`
	DefaultTransferLimit int64         `mapstructure:"default_transfer_limit"`
	MinOpeningBalance    int64         `mapstructure:"min_opening_balance"`
	MaxConflictRetries   int           `mapstructure:"max_conflict_retries"`
	StoreRetries         int           `mapstructure:"store_retries"`
	MailboxRetries       int           `mapstructure:"mailbox_retries"`
	RetryBackoff         time.Duration `mapstructure:"retry_backoff"`
	LockTTL              time.Duration `mapstructure:"lock_ttl"`
	LockWait             time.Duration `mapstructure:"lock_wait"`
	EventTopic           string        `mapstructure:"event_topic"`
}

// RatesConfig holds annual rates in percent, keyed by product type.
type RatesConfig struct {
	Loan map[string]string `mapstructure:"loan"`
	FD   map[string]string `mapstructure:"fd"`
}

type JobsConfig struct {
	OutboxInterval     time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize    int           `mapstructure:"outbox_batch_size"`
	MaxRetryCount      int           `mapstructure:"max_retry_count"`
	RecoverySchedule   string        `mapstructure:"recovery_schedule"`
	RecoveryStaleAfter time.Duration `mapstructure:"recovery_stale_after"`
	RecoveryBatchSize  int           `mapstructure:"recovery_batch_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_in_flight", 256)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("mysql.driver", "mysql")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("redis.mailbox_prefix", "ledger:mailbox")
	v.SetDefault("kafka.topic.ledger_events", "ledger_events")
	v.SetDefault("amqp.exchange", "notifications")
	v.SetDefault("amqp.queue", "email_notifications")
	v.SetDefault("amqp.routing_key", "notification.email")
	v.SetDefault("notifier.driver", "log")
	v.SetDefault("notifier.timeout", 30*time.Second)
	v.SetDefault("notifier.breaker_failures", 5)
	v.SetDefault("notifier.breaker_timeout", 30*time.Second)
	v.SetDefault("mailrelay.port", 5000)
	v.SetDefault("mailrelay.smtp_port", 587)
	v.SetDefault("auth.issuer", "bankledger")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("ledger.routing_code", "chakradhar2002")
	v.SetDefault("ledger.default_transfer_limit", 500000)
	v.SetDefault("ledger.min_opening_balance", 100000)
	v.SetDefault("ledger.max_conflict_retries", 8)
	v.SetDefault("ledger.store_retries", 3)
	v.SetDefault("ledger.mailbox_retries", 5)
	v.SetDefault("ledger.retry_backoff", 20*time.Millisecond)
	v.SetDefault("ledger.lock_ttl", 10*time.Second)
	v.SetDefault("ledger.lock_wait", 5*time.Second)
	v.SetDefault("ledger.event_topic", "ledger_events")
	v.SetDefault("rates.loan", map[string]string{
		"Personal":  "10",
		"Home":      "8.5",
		"Car":       "9",
		"Education": "7",
	})
	v.SetDefault("rates.fd", map[string]string{
		"Regular":       "6",
		"TaxSaving":     "6.5",
		"SeniorCitizen": "7",
	})
	v.SetDefault("jobs.outbox_interval", 100*time.Millisecond)
	v.SetDefault("jobs.outbox_batch_size", 100)
	v.SetDefault("jobs.max_retry_count", 5)
	v.SetDefault("jobs.recovery_schedule", "@every 30s")
	v.SetDefault("jobs.recovery_stale_after", time.Minute)
	v.SetDefault("jobs.recovery_batch_size", 100)
}

// LoadConfig reads configPath (yaml) and overlays environment variables,
// e.g. LEDGER_ROUTING_CODE overrides ledger.routing_code. A missing file
// leaves defaults and environment in effect.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Ledger.RoutingCode == "" {
		return errors.New("config: ledger.routing_code is required")
	}
	if c.Ledger.DefaultTransferLimit < 0 {
		return errors.New("config: ledger.default_transfer_limit must not be negative")
	}
	switch c.MySQL.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("config: unsupported mysql.driver %q", c.MySQL.Driver)
	}
	switch c.Notifier.Driver {
	case "http", "amqp", "log":
	default:
		return fmt.Errorf("config: unsupported notifier.driver %q", c.Notifier.Driver)
	}
	return nil
}

// SetConfigFile with an absent path surfaces as a *fs.PathError rather than
// viper.ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
