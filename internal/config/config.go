package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/dunning/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Store      StoreConfig      `validate:"required"`
	PubSub     PubSubConfig     `mapstructure:"pubsub" validate:"required"`
	Kafka      KafkaConfig
	Outbox     OutboxConfig    `validate:"required"`
	Bounce     BounceConfig    `validate:"required"`
	Dunning    DunningConfig   `validate:"required"`
	Provider   ProviderConfig  `validate:"required"`
	Scheduler  SchedulerConfig `validate:"required"`
	Sentry     SentryConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type StoreConfig struct {
	Type     types.StoreType `mapstructure:"type" validate:"required"`
	File     FileStoreConfig `mapstructure:"file"`
	Redis    RedisConfig     `mapstructure:"redis"`
	Postgres PostgresConfig  `mapstructure:"postgres"`
}

type FileStoreConfig struct {
	BasePath string `mapstructure:"base_path"`
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type PubSubConfig struct {
	Type types.PubSubType `mapstructure:"type" validate:"required"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	ClientID      string   `mapstructure:"client_id"`
	TLS           bool     `mapstructure:"tls"`
	UseSASL       bool     `mapstructure:"use_sasl"`
	SASLMechanism string   `mapstructure:"sasl_mechanism"`
	SASLUser      string   `mapstructure:"sasl_user"`
	SASLPassword  string   `mapstructure:"sasl_password"`
}

// OutboxConfig configures where dunning events and notices are published
// and how failed publishes are retried
type OutboxConfig struct {
	EventTopic        string        `mapstructure:"event_topic" validate:"required"`
	NotificationTopic string        `mapstructure:"notification_topic" validate:"required"`
	MaxRetries        uint64        `mapstructure:"max_retries"`
	InitialInterval   time.Duration `mapstructure:"initial_interval"`
	MaxInterval       time.Duration `mapstructure:"max_interval"`
	Multiplier        float64       `mapstructure:"multiplier"`
	MaxElapsedTime    time.Duration `mapstructure:"max_elapsed_time"`
}

type BounceConfig struct {
	Window             time.Duration `mapstructure:"window" validate:"required"`
	PromotionThreshold int           `mapstructure:"promotion_threshold" validate:"required,gt=0"`
	InboxTopic         string        `mapstructure:"inbox_topic" validate:"required"`
	DLQTopic           string        `mapstructure:"dlq_topic"`
}

type ProviderConfig struct {
	FixturePath string `mapstructure:"fixture_path"`
}

type SchedulerConfig struct {
	Interval    time.Duration `mapstructure:"interval" validate:"required"`
	Concurrency int           `mapstructure:"concurrency" validate:"gt=0"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/dunning")

	// DUNNING_DUNNING_DEFAULTS_GRACE_DAYS=5 overrides dunning.defaults.grace_days
	v.SetEnvPrefix("DUNNING")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Deployment.Mode.Validate(); err != nil {
		return err
	}
	if err := c.Store.Type.Validate(); err != nil {
		return err
	}
	return c.Dunning.Validate()
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("deployment.mode", d.Deployment.Mode)
	v.SetDefault("logging.level", d.Logging.Level)

	v.SetDefault("store.type", d.Store.Type)
	v.SetDefault("store.file.base_path", d.Store.File.BasePath)
	v.SetDefault("store.redis.address", d.Store.Redis.Address)
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.key_prefix", d.Store.Redis.KeyPrefix)
	v.SetDefault("store.postgres.host", d.Store.Postgres.Host)
	v.SetDefault("store.postgres.port", d.Store.Postgres.Port)
	v.SetDefault("store.postgres.user", d.Store.Postgres.User)
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.dbname", d.Store.Postgres.DBName)
	v.SetDefault("store.postgres.sslmode", d.Store.Postgres.SSLMode)
	v.SetDefault("store.postgres.max_conns", d.Store.Postgres.MaxConns)

	v.SetDefault("pubsub.type", d.PubSub.Type)
	v.SetDefault("kafka.client_id", d.Kafka.ClientID)
	v.SetDefault("kafka.consumer_group", d.Kafka.ConsumerGroup)

	v.SetDefault("outbox.event_topic", d.Outbox.EventTopic)
	v.SetDefault("outbox.notification_topic", d.Outbox.NotificationTopic)
	v.SetDefault("outbox.max_retries", d.Outbox.MaxRetries)
	v.SetDefault("outbox.initial_interval", d.Outbox.InitialInterval)
	v.SetDefault("outbox.max_interval", d.Outbox.MaxInterval)
	v.SetDefault("outbox.multiplier", d.Outbox.Multiplier)
	v.SetDefault("outbox.max_elapsed_time", d.Outbox.MaxElapsedTime)

	v.SetDefault("bounce.window", d.Bounce.Window)
	v.SetDefault("bounce.promotion_threshold", d.Bounce.PromotionThreshold)
	v.SetDefault("bounce.inbox_topic", d.Bounce.InboxTopic)
	v.SetDefault("bounce.dlq_topic", d.Bounce.DLQTopic)

	v.SetDefault("dunning.defaults.stage_1_threshold", d.Dunning.Defaults.Stage1Threshold)
	v.SetDefault("dunning.defaults.stage_2_threshold", d.Dunning.Defaults.Stage2Threshold)
	v.SetDefault("dunning.defaults.stage_3_threshold", d.Dunning.Defaults.Stage3Threshold)
	v.SetDefault("dunning.defaults.grace_days", d.Dunning.Defaults.GraceDays)
	v.SetDefault("dunning.defaults.min_amount_cents", d.Dunning.Defaults.MinAmountCents)
	v.SetDefault("dunning.defaults.max_notices_per_hour", d.Dunning.Defaults.MaxNoticesPerHour)
	v.SetDefault("dunning.defaults.require_approval_stage_1", d.Dunning.Defaults.RequireApprovalStage1)
	v.SetDefault("dunning.defaults.cooldown", d.Dunning.Defaults.Cooldown)
	v.SetDefault("dunning.invoice_limit", d.Dunning.InvoiceLimit)
	v.SetDefault("dunning.requester", d.Dunning.Requester)

	v.SetDefault("provider.fixture_path", d.Provider.FixturePath)
	v.SetDefault("scheduler.interval", d.Scheduler.Interval)
	v.SetDefault("scheduler.concurrency", d.Scheduler.Concurrency)
}

func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeCycle},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Store: StoreConfig{
			Type: types.StoreTypeFile,
			File: FileStoreConfig{BasePath: "artifacts/dunning"},
			Redis: RedisConfig{
				Address:   "localhost:6379",
				KeyPrefix: "dunning",
			},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "dunning",
				DBName:   "dunning",
				SSLMode:  "disable",
				MaxConns: 10,
			},
		},
		PubSub: PubSubConfig{Type: types.MemoryPubSub},
		Kafka: KafkaConfig{
			ClientID:      "dunning",
			ConsumerGroup: "dunning",
		},
		Outbox: OutboxConfig{
			EventTopic:        "dunning_events",
			NotificationTopic: "dunning_notifications",
			MaxRetries:        10,
			InitialInterval:   time.Second,
			MaxInterval:       time.Minute,
			Multiplier:        2,
			MaxElapsedTime:    5 * time.Minute,
		},
		Bounce: BounceConfig{
			Window:             72 * time.Hour,
			PromotionThreshold: 3,
			InboxTopic:         "dunning_bounces",
			DLQTopic:           "dunning_bounces_dlq",
		},
		Dunning: DunningConfig{
			Defaults:     DefaultDunningSettings(),
			InvoiceLimit: 500,
			Requester:    types.DefaultUserID,
		},
		Provider:  ProviderConfig{FixturePath: "fixtures/invoices"},
		Scheduler: SchedulerConfig{Interval: time.Hour, Concurrency: 4},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
