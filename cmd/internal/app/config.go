package app

import (
	"strings"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" (default) or "pretty" for dev

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// AuthBaseURL is the upstream identity service used for credential
	// exchange; AuthTimeout bounds a single exchange round-trip.
	AuthBaseURL string
	AuthTimeout time.Duration

	// OAuthLoginURL is exposed to the presentation layer as the federated
	// login target. The controller never navigates there on its own.
	OAuthLoginURL string

	// WSAllowedOrigins are host patterns authorized for cross-origin
	// event-stream upgrades.
	WSAllowedOrigins []string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	cfg := Config{
		HTTPAddr:  EnvString("SHIELDGATE_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("SHIELDGATE_LOG_LEVEL", "info"),
		LogFormat: EnvString("SHIELDGATE_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("SHIELDGATE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("SHIELDGATE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("SHIELDGATE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("SHIELDGATE_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("SHIELDGATE_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("SHIELDGATE_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("SHIELDGATE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("SHIELDGATE_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("SHIELDGATE_READINESS_REQUIRE_DB", false),

		AuthBaseURL: EnvString("SHIELDGATE_AUTH_BASE_URL", "http://localhost:8000"),
		AuthTimeout: EnvDuration("SHIELDGATE_AUTH_TIMEOUT", 15*time.Second),

		WSAllowedOrigins: EnvCSV("SHIELDGATE_WS_ALLOWED_ORIGINS", "localhost,127.0.0.1"),
	}

	cfg.OAuthLoginURL = EnvString("SHIELDGATE_OAUTH_LOGIN_URL",
		strings.TrimRight(cfg.AuthBaseURL, "/")+"/auth/google/login")

	return cfg
}
