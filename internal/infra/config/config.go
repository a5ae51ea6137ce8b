package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	HTTPAddr           string
	StorageMode        string // "memory" or "mongo"
	MongoURI           string
	MongoDB            string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	RedisAddr          string
	GatewayBaseURL     string
	GatewayAPIKey      string
	Currency           string
	PollInterval       time.Duration
	PollBudget         time.Duration
	GatewayCallTimeout time.Duration
	SweepInterval      time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	BankAccount        string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		StorageMode:      strings.ToLower(getEnv("STORAGE_MODE", "memory")),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "innkeep"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		GatewayBaseURL:   getEnv("GATEWAY_BASE_URL", "http://localhost:9090"),
		GatewayAPIKey:    os.Getenv("GATEWAY_API_KEY"),
		Currency:         strings.ToUpper(getEnv("CURRENCY", "INR")),
		BankAccount:      getEnv("BANK_ACCOUNT", "guest_receipts"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.PollInterval, err = parseDurationEnv("PAYMENT_POLL_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PollBudget, err = parseDurationEnv("PAYMENT_POLL_BUDGET", 300*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.GatewayCallTimeout, err = parseDurationEnv("GATEWAY_CALL_TIMEOUT", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = parseDurationEnv("RECONCILE_SWEEP_INTERVAL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	switch cfg.StorageMode {
	case "memory":
	case "mongo":
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORAGE_MODE=mongo")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORAGE_MODE %q", cfg.StorageMode)
	}
	if len(cfg.Currency) != 3 {
		return Config{}, fmt.Errorf("invalid CURRENCY %q", cfg.Currency)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}
