// Package config loads the subscription engine's runtime configuration
// from environment variables and an optional config file via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete configuration for the subscriptiond process.
type Config struct {
	Environment string

	HTTP HTTPConfig

	Subscription SubscriptionDefaults

	Condition ConditionConfig

	Command CommandConfig

	Logging LoggingConfig
}

// HTTPConfig configures the health/metrics HTTP server.
type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// SubscriptionDefaults holds subscription tunables loaded from
// configuration. Only MaxRetransmissionQueue is checked (by validate); the
// parameter adjustment in internal/subscription (adjustedParams) uses its
// own constants and does not read these values.
type SubscriptionDefaults struct {
	PublishingInterval      time.Duration
	MaxKeepAliveCount       uint32
	MaxNotificationsPerPub  uint32
	MaxRetransmissionQueue  int
}

// ConditionConfig tunes the AcknowledgeableCondition overlay.
type ConditionConfig struct {
	// RequireConfirm names whether conditions should install the optional
	// ConfirmedState TwoStateVariable. It is loaded but no code in this
	// module reads it when instantiating conditions.
	RequireConfirm bool
}

// CommandConfig configures the MQTT acknowledge/confirm command surface.
type CommandConfig struct {
	BrokerURL          string
	ClientID           string
	TopicPrefix        string
	QoS                byte
	WriteTimeout       time.Duration
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables (prefixed
// SUBSCRIPTIOND_) and, if present, a config file named by
// SUBSCRIPTIOND_CONFIG_FILE or ./config.yaml.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("subscriptiond")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/subscriptiond")
	if cf := v.GetString("config_file"); cf != "" {
		v.SetConfigFile(cf)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Environment: v.GetString("environment"),
		HTTP: HTTPConfig{
			Port:         v.GetInt("http.port"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
		},
		Subscription: SubscriptionDefaults{
			PublishingInterval:     v.GetDuration("subscription.publishing_interval"),
			MaxKeepAliveCount:      uint32(v.GetUint("subscription.max_keep_alive_count")),
			MaxNotificationsPerPub: uint32(v.GetUint("subscription.max_notifications_per_publish")),
			MaxRetransmissionQueue: v.GetInt("subscription.max_retransmission_queue"),
		},
		Condition: ConditionConfig{
			RequireConfirm: v.GetBool("condition.require_confirm"),
		},
		Command: CommandConfig{
			BrokerURL:    v.GetString("command.broker_url"),
			ClientID:     v.GetString("command.client_id"),
			TopicPrefix:  v.GetString("command.topic_prefix"),
			QoS:          byte(v.GetUint("command.qos")),
			WriteTimeout: v.GetDuration("command.write_timeout"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)

	// The first two mirror the values adjustedParams (internal/subscription)
	// substitutes for a zero request; adjustedParams does not read them.
	v.SetDefault("subscription.publishing_interval", 1*time.Second)
	v.SetDefault("subscription.max_keep_alive_count", 2)
	v.SetDefault("subscription.max_notifications_per_publish", 0)
	v.SetDefault("subscription.max_retransmission_queue", 100)

	v.SetDefault("condition.require_confirm", false)

	v.SetDefault("command.broker_url", "tcp://localhost:1883")
	v.SetDefault("command.client_id", "subscriptiond")
	v.SetDefault("command.topic_prefix", "$subscriptions/cmd")
	v.SetDefault("command.qos", 1)
	v.SetDefault("command.write_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func validate(cfg *Config) error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", cfg.HTTP.Port)
	}
	if cfg.Subscription.MaxRetransmissionQueue <= 0 {
		return fmt.Errorf("subscription.max_retransmission_queue must be positive")
	}
	return nil
}
