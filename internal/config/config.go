// Package config loads application configuration from environment
// variables.  cmd/server calls godotenv first, so a local .env file works
// the same way as real environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Store drivers.
const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

// Config holds all runtime configuration values.
type Config struct {
	Env  string // APP_ENV: dev, test, prod
	Port string // APP_PORT

	StoreDriver string // STORE_DRIVER: mysql (default) or memory
	DBUser      string
	DBPass      string
	DBHost      string
	DBPort      string
	DBName      string
	AutoMigrate bool // DB_AUTO_MIGRATE: create missing tables on start

	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int

	// Location is the zone working hours are expressed in (TIMEZONE).
	Location *time.Location

	ReconcileInterval      time.Duration // RECONCILE_INTERVAL
	ReconcileApplyGrace    bool          // RECONCILE_APPLY_GRACE
	ReconcileLeaseTTL      time.Duration // RECONCILE_LEASE_TTL
	SettingsReloadInterval time.Duration // SETTINGS_RELOAD_INTERVAL
	TokenPurgeInterval     time.Duration // TOKEN_PURGE_INTERVAL

	RabbitURL             string // RABBITMQ_URL, empty disables events
	BookingQueue          string // BOOKING_EVENTS_QUEUE
	LedgerConsumerEnabled bool   // LEDGER_CONSUMER_ENABLED
	LedgerLogDir          string // LEDGER_LOG_DIR

	QRSize int // QR_SIZE in pixels
}

// Load reads the configuration.  Required variables are enforced by must()
// and missing values stop the program with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:         envStr("APP_ENV", "dev"),
		Port:        must("APP_PORT"),
		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
		AutoMigrate: envBool("DB_AUTO_MIGRATE", true),

		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     envInt("BCRYPT_COST", 10),

		Location: mustLocation("TIMEZONE"),

		ReconcileInterval:      envDur("RECONCILE_INTERVAL", time.Minute),
		ReconcileApplyGrace:    envBool("RECONCILE_APPLY_GRACE", false),
		ReconcileLeaseTTL:      envDur("RECONCILE_LEASE_TTL", 30*time.Second),
		SettingsReloadInterval: envDur("SETTINGS_RELOAD_INTERVAL", 30*time.Second),
		TokenPurgeInterval:     envDur("TOKEN_PURGE_INTERVAL", time.Hour),

		RabbitURL:             os.Getenv("RABBITMQ_URL"),
		BookingQueue:          envStr("BOOKING_EVENTS_QUEUE", "booking_events"),
		LedgerConsumerEnabled: envBool("LEDGER_CONSUMER_ENABLED", false),
		LedgerLogDir:          envStr("LEDGER_LOG_DIR", "logs"),

		QRSize: envInt("QR_SIZE", 256),
	}
	switch cfg.StoreDriver {
	case DriverMySQL:
		loadDB(&cfg)
	case DriverMemory:
	default:
		log.Fatalf("invalid STORE_DRIVER %q (want mysql or memory)", cfg.StoreDriver)
	}
	if cfg.ReconcileInterval <= 0 {
		log.Fatalf("RECONCILE_INTERVAL must be positive")
	}
	return cfg
}

// LoadSeed reads only what cmd/seed needs: the MySQL connection and the
// bcrypt cost for the accounts it creates.
func LoadSeed() Config {
	cfg := Config{StoreDriver: DriverMySQL, AutoMigrate: true, BcryptCost: envInt("BCRYPT_COST", 10)}
	loadDB(&cfg)
	return cfg
}

func loadDB(cfg *Config) {
	cfg.DBUser = must("DB_USER")
	cfg.DBPass = os.Getenv("DB_PASS")
	cfg.DBHost = must("DB_HOST")
	cfg.DBPort = envStr("DB_PORT", "3306")
	cfg.DBName = must("DB_NAME")
}

// must retrieves the value of a required environment variable.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustLocation loads an IANA zone name, defaulting to UTC when unset.
func mustLocation(key string) *time.Location {
	name := envStr(key, "UTC")
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Fatalf("invalid %s %q: %v", key, name, err)
	}
	return loc
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(os.Getenv(k)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
