package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the booking service.
type Config struct {
	HTTPPort         int
	APIToken         string
	DBDriver         string
	DBDSN            string
	Timezone         string
	AdminSecretHash  string
	OrganizerHandles []string
	NATSURL          string
	RedisAddr        string
	RedisPassword    string
	ActivityCacheTTL time.Duration
	SeedFile         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration
	DBMaxOpenConns   int
	DBBusyTimeout    time.Duration
	MaxBodyBytes     int64
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Every missing or malformed variable
// is collected and reported in a single error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:         8080,
		DBDriver:         "sqlite",
		DBDSN:            "file:carebook.db",
		Timezone:         "UTC",
		ActivityCacheTTL: 10 * time.Minute,
		LogLevel:         "info",
		LogFormat:        "json",
		ShutdownTimeout:  10 * time.Second,
		DBMaxOpenConns:   10,
		DBBusyTimeout:    5 * time.Second,
		MaxBodyBytes:     1 << 20,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	if portValue := env("CAREBOOK_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "CAREBOOK_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if token := env("CAREBOOK_API_TOKEN"); token == "" {
		missing = append(missing, "CAREBOOK_API_TOKEN")
	} else {
		cfg.APIToken = token
	}

	if driver := env("CAREBOOK_DB_DRIVER"); driver != "" {
		switch strings.ToLower(driver) {
		case "sqlite", "postgres", "postgresql", "pq":
			cfg.DBDriver = strings.ToLower(driver)
		default:
			invalid = append(invalid, "CAREBOOK_DB_DRIVER")
		}
	}

	if dsn := env("CAREBOOK_DB_DSN"); dsn != "" {
		cfg.DBDSN = dsn
	}

	if tz := env("CAREBOOK_TIMEZONE"); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "CAREBOOK_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	cfg.AdminSecretHash = env("CAREBOOK_ADMIN_SECRET_HASH")
	cfg.OrganizerHandles = splitList(env("CAREBOOK_ORGANIZER_HANDLES"))
	cfg.NATSURL = env("CAREBOOK_NATS_URL")
	cfg.RedisAddr = env("CAREBOOK_REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("CAREBOOK_REDIS_PASSWORD")
	cfg.SeedFile = env("CAREBOOK_SEED_FILE")

	if ttlValue := env("CAREBOOK_ACTIVITY_CACHE_TTL"); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "CAREBOOK_ACTIVITY_CACHE_TTL")
		} else {
			cfg.ActivityCacheTTL = ttl
		}
	}

	if level := env("CAREBOOK_LOG_LEVEL"); level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "warning", "error":
			cfg.LogLevel = strings.ToLower(level)
		default:
			invalid = append(invalid, "CAREBOOK_LOG_LEVEL")
		}
	}

	if format := env("CAREBOOK_LOG_FORMAT"); format != "" {
		switch strings.ToLower(format) {
		case "json", "text":
			cfg.LogFormat = strings.ToLower(format)
		default:
			invalid = append(invalid, "CAREBOOK_LOG_FORMAT")
		}
	}

	if timeoutValue := env("CAREBOOK_SHUTDOWN_TIMEOUT"); timeoutValue != "" {
		timeout, err := time.ParseDuration(timeoutValue)
		if err != nil || timeout <= 0 {
			invalid = append(invalid, "CAREBOOK_SHUTDOWN_TIMEOUT")
		} else {
			cfg.ShutdownTimeout = timeout
		}
	}

	if connsValue := env("CAREBOOK_DB_MAX_OPEN_CONNS"); connsValue != "" {
		conns, err := strconv.Atoi(connsValue)
		if err != nil || conns <= 0 {
			invalid = append(invalid, "CAREBOOK_DB_MAX_OPEN_CONNS")
		} else {
			cfg.DBMaxOpenConns = conns
		}
	}

	if busyValue := env("CAREBOOK_DB_BUSY_TIMEOUT"); busyValue != "" {
		busy, err := time.ParseDuration(busyValue)
		if err != nil || busy < 0 {
			invalid = append(invalid, "CAREBOOK_DB_BUSY_TIMEOUT")
		} else {
			cfg.DBBusyTimeout = busy
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
