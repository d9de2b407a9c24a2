// Package config builds validated configuration structs once at startup so
// main stays lean and nothing re-reads environment state mid-request.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "hrms/pkg/platform/strings"
)

// Kafka captures everything the delivery and intake clients need. One struct
// is built per process and passed by reference into the client constructors.
type Kafka struct {
	// Brokers lists bootstrap addresses, comma separated in the environment.
	Brokers []string
	// ClientID identifies the producing/consuming service to the broker.
	ClientID string
	// EnableProducer toggles the async path for this service. When false,
	// fallback-eligible events always take the synchronous collaborator and
	// fire-and-forget events are dropped.
	EnableProducer bool
	// SendRetries bounds internal retries before Send reports failure.
	SendRetries int
	// SendBackoff is the base delay between send retries.
	SendBackoff time.Duration
	// SendTimeout bounds a single produce round trip.
	SendTimeout time.Duration

	// GroupID names the consumer group for intake clients.
	GroupID string
	// BatchSize caps batched consumption.
	BatchSize int
	// BatchWindow bounds how long a partial batch may wait before delivery.
	BatchWindow time.Duration
}

// Fallback holds the synchronous collaborator endpoints used when the async
// path is disabled or failing.
type Fallback struct {
	NotificationURL string
	AuditURL        string
	RequestTimeout  time.Duration
	// SigningKey mints short-lived service tokens for collaborator calls.
	SigningKey string
}

// SMTP holds relay settings for the notification worker. An empty Addr means
// emails are written to the log instead.
type SMTP struct {
	Addr     string
	From     string
	Username string
	Password string
}

// Service is the top-level configuration for a worker or service process.
type Service struct {
	Name        string
	HTTPAddr    string
	Kafka       Kafka
	Fallback    Fallback
	SMTP        SMTP
	PostgresDSN string
	RedisURL    string
}

// FromEnv builds a Service config from environment variables and validates it.
func FromEnv(serviceName string) (Service, error) {
	cfg := Service{
		Name:     serviceName,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		Kafka: Kafka{
			Brokers:        splitList(envOr("KAFKA_BOOTSTRAP_SERVERS", "kafka:9092")),
			ClientID:       envOr("KAFKA_CLIENT_ID", serviceName),
			EnableProducer: envBool("KAFKA_ENABLE_PRODUCER", true),
			SendRetries:    envInt("KAFKA_SEND_RETRIES", 3),
			SendBackoff:    envDuration("KAFKA_SEND_BACKOFF", 250*time.Millisecond),
			SendTimeout:    envDuration("KAFKA_SEND_TIMEOUT", 5*time.Second),
			GroupID:        envOr("KAFKA_CONSUMER_GROUP_ID", serviceName+"-group"),
			BatchSize:      envInt("KAFKA_BATCH_SIZE", 100),
			BatchWindow:    envDuration("KAFKA_BATCH_WINDOW", 2*time.Second),
		},
		Fallback: Fallback{
			NotificationURL: os.Getenv("NOTIFICATION_SERVICE_URL"),
			AuditURL:        os.Getenv("AUDIT_SERVICE_URL"),
			RequestTimeout:  envDuration("SERVICE_REQUEST_TIMEOUT", 10*time.Second),
			SigningKey:      envOr("SERVICE_TOKEN_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		SMTP: SMTP{
			Addr:     os.Getenv("SMTP_ADDR"),
			From:     envOr("SMTP_FROM", "no-reply@hrms.local"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisURL:    os.Getenv("REDIS_URL"),
	}
	if err := cfg.Validate(); err != nil {
		return Service{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would only fail later at runtime.
func (c Service) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}
	if c.Kafka.SendRetries < 0 {
		return fmt.Errorf("kafka send retries must be >= 0")
	}
	if c.Kafka.BatchSize <= 0 {
		return fmt.Errorf("kafka batch size must be > 0")
	}
	if c.Kafka.BatchWindow <= 0 {
		return fmt.Errorf("kafka batch window must be > 0")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	return strutil.DedupeAndTrim(strings.Split(v, ","))
}
