package config

import (
	"os"
	"strings"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	// Owner is the hex address allowed to grant, revoke, and withdraw.
	Owner string
	// Reserve is the ledger account that holds tokens backing live grants.
	Reserve string
	// Asset identifies the vesting token itself, used to pick the rescue
	// ceiling on withdrawals.
	Asset string
	// ReserveFund, when set, mints that many tokens into the reserve at
	// startup. Dev-mode convenience for the in-memory ledger.
	ReserveFund string

	// DatabaseURL enables the postgres grant store and audit outbox when
	// set; empty means in-memory stores (dev mode).
	DatabaseURL string
	// RedisAddr enables the idempotency middleware when set.
	RedisAddr string
	// KafkaBrokers enables the audit relay when non-empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("TRUSTEE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	topic := os.Getenv("KAFKA_AUDIT_TOPIC")
	if topic == "" {
		topic = "trustee.audit"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		Owner:         os.Getenv("TRUSTEE_OWNER"),
		Reserve:       os.Getenv("TRUSTEE_RESERVE"),
		Asset:         os.Getenv("TRUSTEE_ASSET"),
		ReserveFund:   os.Getenv("TRUSTEE_RESERVE_FUND"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		KafkaBrokers:  brokers,
		KafkaTopic:    topic,
	}
}
