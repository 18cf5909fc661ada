package config

import (
	"os"
	"strings"
	"time"

	"cedarguard/internal/logger"
	"cedarguard/internal/secrets"
)

// Config holds the demo cmd's runtime configuration: where to listen,
// how to reach Postgres/Redis, and how often to poll the policy store
// for changes. The core session/engine/store packages take their own
// options directly; this is only the outermost wiring layer.
type Config struct {
	ListenAddr       string
	DatabaseDSN      string
	RedisAddr        string
	RedisPassword    string
	KafkaBrokers     []string
	KafkaTopic       string
	PolicyDir        string
	PolicyPollPeriod time.Duration
	OTLPEndpoint     string
	ServiceName      string
}

func Load() Config {
	log := logger.WithComponent("config")

	loader, err := secrets.NewLoader()
	if err != nil {
		log.Warn("failed to initialize secrets loader, falling back to env vars", "error", err)
		loader = &secrets.Loader{}
	}

	dsn := loader.LoadDatabaseDSN(getenv("CEDARGUARD_DB_DSN", "postgres://localhost:5432/cedarguard?sslmode=disable"))
	redisPassword := loader.LoadRedisPassword()

	return Config{
		ListenAddr:       getenv("CEDARGUARD_LISTEN_ADDR", ":8443"),
		DatabaseDSN:      dsn,
		RedisAddr:        getenv("CEDARGUARD_REDIS_ADDR", "localhost:6379"),
		RedisPassword:    redisPassword,
		KafkaBrokers:     splitCSV(getenv("CEDARGUARD_KAFKA_BROKERS", "")),
		KafkaTopic:       getenv("CEDARGUARD_KAFKA_TOPIC", "cedarguard.decisions"),
		PolicyDir:        getenv("CEDARGUARD_POLICY_DIR", "./policies"),
		PolicyPollPeriod: getenvDuration("CEDARGUARD_POLICY_POLL", 10*time.Second),
		OTLPEndpoint:     getenv("CEDARGUARD_OTLP_ENDPOINT", ""),
		ServiceName:      getenv("CEDARGUARD_SERVICE_NAME", "cedarguard"),
	}
}

func (c Config) Snapshot() map[string]any {
	return map[string]any{
		"listenAddr":   c.ListenAddr,
		"redisAddr":    c.RedisAddr,
		"kafkaBrokers": c.KafkaBrokers,
		"kafkaTopic":   c.KafkaTopic,
		"policyDir":    c.PolicyDir,
		"policyPoll":   c.PolicyPollPeriod.String(),
		"serviceName":  c.ServiceName,
	}
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, fallback string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return fallback
	}
	return v
}

func getenvDuration(k string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(k))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
