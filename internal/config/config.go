package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"time"    // time resolves the studio's display timezone
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and thresholds.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	JWTSecret      string // secret used to sign JWTs
	AccessTTLMin   int    // access token time‑to‑live in minutes
	RefreshTTLDays int    // refresh token time‑to‑live in days
	BcryptCost     int    // bcrypt cost for password hashing

	// Booking policy knobs.  All optional with studio defaults.
	CancelCutoffHours     int    // minimum lead time for a refundable cancellation
	BookingWindowDays     int    // how far ahead a slot may be booked
	MaxActiveReservations int    // cap on upcoming confirmed reservations per member
	LowBalanceThreshold   int    // remaining classes at or below this raise an advisory
	ExpiryAlertDays       int    // days to expiry at or below this raise an advisory
	StudioTimezone        string // IANA timezone the calendar is rendered in
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Policy knobs fall
// back to the studio defaults when unset.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),  // environment (dev/test/prod)
		Port:           must("APP_PORT"), // port to bind the HTTP server
		DBUser:         must("DB_USER"),  // database user
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		CancelCutoffHours:     envInt("CANCEL_CUTOFF_HOURS", 2),
		BookingWindowDays:     envInt("BOOKING_WINDOW_DAYS", 7),
		MaxActiveReservations: envInt("MAX_ACTIVE_RESERVATIONS", 10),
		LowBalanceThreshold:   envInt("LOW_BALANCE_THRESHOLD", 3),
		ExpiryAlertDays:       envInt("EXPIRY_ALERT_DAYS", 5),
		StudioTimezone:        envStr("STUDIO_TIMEZONE", "UTC"),
	}
}

// Location resolves the studio timezone, falling back to UTC when the
// configured name is unknown.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.StudioTimezone)
	if err != nil {
		log.Printf("config: unknown timezone %q, using UTC", c.StudioTimezone)
		return time.UTC
	}
	return loc
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

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
// Optional knobs with defaults use envStr/envInt from ratelimit.go.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
