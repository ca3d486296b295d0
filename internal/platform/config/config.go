package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr      string
	Ecosystem string
	LogLevel  string

	// InvitesPerMember is the exact size of a member's one-time batch.
	InvitesPerMember int
	// ChallengeSchemes lists accepted wallet challenge schemes, preferred first.
	ChallengeSchemes []string
	TxTimeout        time.Duration

	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// DatabaseURL selects postgres persistence; empty runs in memory.
	DatabaseURL string

	Redis RedisConfig
	Kafka KafkaConfig
	Relay RelayConfig
}

// RedisConfig configures the Redis stream publisher.
type RedisConfig struct {
	URL          string
	Stream       string
	StreamMaxLen int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the Kafka publisher. Brokers takes precedence over Redis.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

type RelayConfig struct {
	Interval  time.Duration
	BatchSize int
}

const defaultJWTSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:             getEnv("INVITEGATE_ADDR", ":8080"),
		Ecosystem:        getEnv("INVITEGATE_ECOSYSTEM", "Estonians888InviteNFT"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ChallengeSchemes: splitList(getEnv("INVITEGATE_CHALLENGE_SCHEMES", "packed")),
		// Use a default for development - should be overridden in production
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", defaultJWTSigningKey),
		JWTIssuer:     getEnv("JWT_ISSUER", "invitegate"),
		JWTAudience:   getEnv("JWT_AUDIENCE", "invitegate-api"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:    os.Getenv("REDIS_URL"),
			Stream: getEnv("REDIS_STREAM", "invitegate:ledger:events"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC", "invitegate.ledger.events"),
		},
	}

	var err error
	if cfg.InvitesPerMember, err = getInt("INVITEGATE_INVITES_PER_MEMBER", 8); err != nil {
		return Server{}, err
	}
	if cfg.InvitesPerMember < 1 {
		return Server{}, fmt.Errorf("INVITEGATE_INVITES_PER_MEMBER must be positive")
	}
	if cfg.TxTimeout, err = getDuration("INVITEGATE_TX_TIMEOUT", 5*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.StreamMaxLen, err = getInt("REDIS_STREAM_MAXLEN", 100_000); err != nil {
		return Server{}, err
	}
	if cfg.Redis.PoolSize, err = getInt("REDIS_POOL_SIZE", 10); err != nil {
		return Server{}, err
	}
	if cfg.Redis.MinIdleConns, err = getInt("REDIS_MIN_IDLE_CONNS", 2); err != nil {
		return Server{}, err
	}
	if cfg.Redis.DialTimeout, err = getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.ReadTimeout, err = getDuration("REDIS_READ_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Redis.WriteTimeout, err = getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second); err != nil {
		return Server{}, err
	}
	partitions, err := getInt("KAFKA_PARTITIONS", 3)
	if err != nil {
		return Server{}, err
	}
	cfg.Kafka.Partitions = int32(partitions)
	rf, err := getInt("KAFKA_REPLICATION_FACTOR", 1)
	if err != nil {
		return Server{}, err
	}
	cfg.Kafka.ReplicationFactor = int16(rf)
	if cfg.Relay.Interval, err = getDuration("RELAY_INTERVAL", time.Second); err != nil {
		return Server{}, err
	}
	if cfg.Relay.BatchSize, err = getInt("RELAY_BATCH_SIZE", 100); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// UsesDefaultSigningKey reports whether JWT_SIGNING_KEY was left unset.
func (s Server) UsesDefaultSigningKey() bool {
	return s.JWTSigningKey == defaultJWTSigningKey
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
