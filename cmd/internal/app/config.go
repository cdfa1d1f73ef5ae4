package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// TokenSecret signs and verifies session bearer tokens (>= 32 bytes).
	TokenSecret string

	// QRSecret signs QR invite payloads (>= 32 bytes).
	QRSecret string

	// StorySweepSpec is the cron spec for the story expiry sweep.
	StorySweepSpec string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("LOOP_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("LOOP_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("LOOP_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("LOOP_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("LOOP_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("LOOP_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("LOOP_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("LOOP_DATABASE_URL", ""),
		DBSchema:    EnvString("LOOP_DB_SCHEMA", "loop"),
		DBMaxConns:  EnvInt32("LOOP_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("LOOP_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("LOOP_READINESS_REQUIRE_DB", false),

		TokenSecret: EnvString("LOOP_TOKEN_SECRET", ""),
		QRSecret:    EnvString("LOOP_QR_SECRET", ""),

		StorySweepSpec: EnvString("LOOP_STORY_SWEEP_SPEC", ""),
	}
}
