package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time parses duration settings

	"github.com/joho/godotenv"      // godotenv loads a local .env file when present
	"github.com/shopspring/decimal" // decimal parses currency settings exactly
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, durations for
// intervals, decimals for currency amounts.
type Config struct {
	Env             string          // application environment (e.g. "dev", "prod")
	Port            string          // HTTP port to listen on
	DBUser          string          // database username
	DBPass          string          // database password (optional)
	DBHost          string          // database host address
	DBPort          string          // database port number
	DBName          string          // database name
	JWTSecret       string          // secret used to verify JWTs from the account service
	MinIncrement    decimal.Decimal // minimum step over the current highest bid, in currency units
	SweepInterval   time.Duration   // how often the expiry sweeper runs
	MaxAuctionHours int             // upper bound on auction duration at listing creation
	RoomLockWait    time.Duration   // how long a bid waits for the per-room lock before Busy
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when it
// exists, so local development does not need exported variables.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // absent .env is fine; real env vars win either way
	return Config{
		Env:             must("APP_ENV"),      // environment (dev/test/prod)
		Port:            must("APP_PORT"),     // port to bind the HTTP server
		DBUser:          must("DB_USER"),      // database user
		DBPass:          os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:          must("DB_HOST"),      // database host
		DBPort:          must("DB_PORT"),      // database port
		DBName:          must("DB_NAME"),      // database name
		JWTSecret:       must("JWT_SECRET"),   // secret used for verifying JWTs
		MinIncrement:    envDecimal("MIN_BID_INCREMENT", "1"),
		SweepInterval:   envDuration("SWEEP_INTERVAL", 5*time.Minute),
		MaxAuctionHours: envIntDefault("MAX_AUCTION_HOURS", 168),
		RoomLockWait:    envDuration("ROOM_LOCK_WAIT", 2*time.Second),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envIntDefault parses an optional integer variable, falling back to
// def when unset and exiting on malformed values.
func envIntDefault(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// envDuration parses an optional duration variable ("5m", "2s"),
// falling back to def when unset and exiting on malformed values.
func envDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}

// envDecimal parses an optional decimal variable, falling back to the
// given default and exiting on malformed values.  Currency settings go
// through decimal so configured increments never pick up float noise.
func envDecimal(key, def string) decimal.Decimal {
	s := os.Getenv(key)
	if s == "" {
		s = def
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("invalid decimal for %s: %q", key, s)
	}
	return d
}
