// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Redis captures connection settings for the push transport.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures broker settings for notification fan-out. Empty Brokers
// disables the producer.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Server is the full process configuration.
type Server struct {
	Addr          string
	PostgresDSN   string
	JWTSigningKey string
	Redis         Redis
	Kafka         Kafka
}

// FromEnv reads configuration with development defaults. Production deploys
// must override the signing key.
func FromEnv() Server {
	addr := os.Getenv("CONDOSYNC_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("KAFKA_NOTIFICATIONS_TOPIC")
	if topic == "" {
		topic = "condosync.notifications"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = strings.Split(raw, ",")
	}

	return Server{
		Addr:          addr,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		JWTSigningKey: jwtSigningKey,
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			Brokers: brokers,
			Topic:   topic,
		},
	}
}
