// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	DatabaseURL string
	OpsAddr     string
	TxTimeout   time.Duration
	Log         Log
	Audit       Audit
}

// Log controls the slog handler.
type Log struct {
	Level  string
	Format string
}

// Audit configures the outbox relay. An empty broker list disables the relay.
type Audit struct {
	Brokers       []string
	Topic         string
	Partitions    int32
	Replication   int16
	RelayInterval time.Duration
	RelayBatch    int
	RelayTimeout  time.Duration
}

// RelayEnabled reports whether audit entries are forwarded to Kafka.
func (a Audit) RelayEnabled() bool {
	return len(a.Brokers) > 0
}

// Load reads an optional .env file and then the environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables with defaults.
func FromEnv() (Config, error) {
	txTimeout, err := durationEnv("DONATIONS_TX_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	interval, err := durationEnv("DONATIONS_RELAY_INTERVAL", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	relayTimeout, err := durationEnv("DONATIONS_RELAY_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	batch, err := intEnv("DONATIONS_RELAY_BATCH", 100)
	if err != nil {
		return Config{}, err
	}
	partitions, err := intEnv("DONATIONS_AUDIT_PARTITIONS", 3)
	if err != nil {
		return Config{}, err
	}
	replication, err := intEnv("DONATIONS_AUDIT_REPLICATION", 1)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DatabaseURL: os.Getenv("DONATIONS_DATABASE_URL"),
		OpsAddr:     stringEnv("DONATIONS_OPS_ADDR", ":9090"),
		TxTimeout:   txTimeout,
		Log: Log{
			Level:  stringEnv("DONATIONS_LOG_LEVEL", "info"),
			Format: stringEnv("DONATIONS_LOG_FORMAT", "json"),
		},
		Audit: Audit{
			Brokers:       splitList(os.Getenv("DONATIONS_KAFKA_BROKERS")),
			Topic:         stringEnv("DONATIONS_AUDIT_TOPIC", "donations.audit"),
			Partitions:    int32(partitions),
			Replication:   int16(replication),
			RelayInterval: interval,
			RelayBatch:    batch,
			RelayTimeout:  relayTimeout,
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DONATIONS_DATABASE_URL is required")
	}
	if c.TxTimeout <= 0 {
		return errors.New("DONATIONS_TX_TIMEOUT must be positive")
	}
	if c.Audit.RelayEnabled() && c.Audit.Topic == "" {
		return errors.New("DONATIONS_AUDIT_TOPIC is required when brokers are set")
	}
	if c.Audit.Partitions <= 0 || c.Audit.Replication <= 0 {
		return errors.New("DONATIONS_AUDIT_PARTITIONS and DONATIONS_AUDIT_REPLICATION must be positive")
	}
	if c.Audit.RelayBatch <= 0 {
		return errors.New("DONATIONS_RELAY_BATCH must be positive")
	}
	if c.Audit.RelayTimeout <= 0 {
		return errors.New("DONATIONS_RELAY_TIMEOUT must be positive")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("DONATIONS_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}
	return nil
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
