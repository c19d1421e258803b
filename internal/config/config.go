package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/bacembenakkari/TalentCloud/internal/events"
)

type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Database DatabaseConfig `envconfig:"DB"`
	Kafka    KafkaConfig    `envconfig:"KAFKA"`
	Consumer ConsumerConfig `envconfig:"CONSUMER"`
	Redis    RedisConfig    `envconfig:"REDIS"`
	Dedupe   DedupeConfig   `envconfig:"DEDUPE"`
	Identity IdentityConfig `envconfig:"IDENTITY"`
	Mail     MailConfig     `envconfig:"MAIL"`
	HTTP     HTTPConfig     `envconfig:"HTTP"`
	Metrics  MetricsConfig  `envconfig:"METRICS"`

	// Subscriptions is filled from KAFKA_SUBSCRIPTIONS_FILE, or the
	// built-in table when no file is given.
	Subscriptions []Subscription `ignored:"true"`
}

type DatabaseConfig struct {
	Host         string `envconfig:"HOST" default:"localhost"`
	Port         string `envconfig:"PORT" default:"5432"`
	User         string `envconfig:"USER" default:"postgres"`
	Password     string `envconfig:"PASSWORD" default:"postgres"`
	DBName       string `envconfig:"NAME" default:"talentcloud"`
	SSLMode      string `envconfig:"SSLMODE" default:"disable"`
	MaxOpenConns int    `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns int    `envconfig:"MAX_IDLE_CONNS" default:"5"`
}

type KafkaConfig struct {
	Brokers           []string `envconfig:"BROKERS" default:"localhost:9092"`
	ClientID          string   `envconfig:"CLIENT_ID" default:"talentcloud"`
	SubscriptionsFile string   `envconfig:"SUBSCRIPTIONS_FILE"`
	// InitialOffset is "newest" or "oldest"; it only applies to groups
	// without a committed offset.
	InitialOffset string `envconfig:"INITIAL_OFFSET" default:"newest"`
}

type ConsumerConfig struct {
	MaxAttempts int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	Backoff     time.Duration `envconfig:"BACKOFF" default:"1s"`
}

// MetricsConfig controls the periodic metrics export.
type MetricsConfig struct {
	Enabled  bool          `envconfig:"ENABLED" default:"true"`
	Interval time.Duration `envconfig:"INTERVAL" default:"60s"`
}

type RedisConfig struct {
	Addr     string `envconfig:"ADDR" default:"localhost:6379"`
	Password string `envconfig:"PASSWORD"`
	DB       int    `envconfig:"DB" default:"0"`
}

type DedupeConfig struct {
	Enabled bool          `envconfig:"ENABLED" default:"false"`
	TTL     time.Duration `envconfig:"TTL" default:"168h"`
}

type IdentityConfig struct {
	BaseURL        string        `envconfig:"BASE_URL" default:"http://localhost:8080"`
	Timeout        time.Duration `envconfig:"TIMEOUT" default:"5s"`
	FallbackDomain string        `envconfig:"FALLBACK_DOMAIN" default:"talentcloud.com"`
}

type MailConfig struct {
	SMTPHost    string        `envconfig:"SMTP_HOST"`
	SMTPPort    int           `envconfig:"SMTP_PORT" default:"587"`
	Username    string        `envconfig:"USERNAME"`
	Password    string        `envconfig:"PASSWORD"`
	From        string        `envconfig:"FROM" default:"noreply@talentcloud.com"`
	SendTimeout time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
}

type HTTPConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8085"`
	RateLimit       int64         `envconfig:"RATE_LIMIT" default:"100"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// Subscription binds a consumer group to the topics it reads. EventType is
// the type assumed for messages that do not name one.
type Subscription struct {
	Group     string           `yaml:"group"`
	Topics    []string         `yaml:"topics"`
	EventType events.EventType `yaml:"eventType"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if cfg.Consumer.MaxAttempts < 1 {
		return nil, fmt.Errorf("CONSUMER_MAX_ATTEMPTS must be at least 1, got %d", cfg.Consumer.MaxAttempts)
	}

	cfg.Subscriptions = DefaultSubscriptions()
	if cfg.Kafka.SubscriptionsFile != "" {
		subs, err := LoadSubscriptions(cfg.Kafka.SubscriptionsFile)
		if err != nil {
			return nil, err
		}
		cfg.Subscriptions = subs
	}

	return &cfg, nil
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// DefaultSubscriptions is the notification service's subscription table:
// one group per purpose, never shared.
func DefaultSubscriptions() []Subscription {
	return []Subscription{
		{Group: "notification-profile-created-group", Topics: []string{events.TopicProfileCreated}, EventType: events.ProfileCreatedType},
		{Group: "notification-client-profile-group", Topics: []string{events.TopicClientProfileCreated}, EventType: events.ProfileCreatedType},
		{Group: "notification-candidate-status-group", Topics: []string{events.TopicCandidateProfileStatus}, EventType: events.ProfileStatusChangedType},
		{Group: "notification-client-status-group", Topics: []string{events.TopicClientProfileStatus}, EventType: events.ProfileStatusChangedType},
		{Group: "notification-application-submitted-group", Topics: []string{events.TopicApplicationSubmitted}, EventType: events.ApplicationSubmittedType},
		{Group: "notification-application-status-group", Topics: []string{events.TopicApplicationStatusChanged}, EventType: events.ApplicationStatusChangedType},
		{Group: "notification-job-created-group", Topics: []string{events.TopicJobCreated, events.TopicJobOfferCreatedAlias}, EventType: events.JobOfferCreatedType},
	}
}

type subscriptionFile struct {
	Subscriptions []Subscription `yaml:"subscriptions"`
}

// LoadSubscriptions reads a YAML subscription table.
func LoadSubscriptions(path string) ([]Subscription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriptions file: %w", err)
	}

	var file subscriptionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse subscriptions file %s: %w", path, err)
	}

	if err := validateSubscriptions(file.Subscriptions); err != nil {
		return nil, fmt.Errorf("invalid subscriptions file %s: %w", path, err)
	}

	return file.Subscriptions, nil
}

func validateSubscriptions(subs []Subscription) error {
	if len(subs) == 0 {
		return fmt.Errorf("no subscriptions defined")
	}

	groups := make(map[string]bool, len(subs))
	for i, s := range subs {
		if s.Group == "" {
			return fmt.Errorf("subscription %d has no group", i)
		}
		if groups[s.Group] {
			return fmt.Errorf("group %s is declared twice", s.Group)
		}
		groups[s.Group] = true

		if len(s.Topics) == 0 {
			return fmt.Errorf("group %s has no topics", s.Group)
		}
		if _, err := events.ParseEventType(string(s.EventType)); err != nil {
			return fmt.Errorf("group %s: %w", s.Group, err)
		}
	}
	return nil
}
