package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvProduction is the RANCHO_ENV value that turns on the strict checks.
const EnvProduction = "production"

// DevAdminPassword is the admin password used outside production when none is configured.
const DevAdminPassword = "admin123"

// Config holds everything the server reads from the environment.
type Config struct {
	Addr      string
	Env       string
	DBPath    string
	StaticDir string
	UploadDir string

	AdminPasswordHash string
	AdminPassword     string // plaintext fallback, hashed at startup; never used in production
	CSRFKey           []byte // nil means generate a random key per process
	SessionTTL        time.Duration
	RedisURL          string

	ResendKey  string
	ResendFrom string
	AlertEmail string

	LoginRate  float64 // login attempts per second per IP
	LoginBurst int

	SlowQuery   time.Duration
	SlowRequest time.Duration
	LogLevel    slog.Level
}

// IsProduction reports whether RANCHO_ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Load reads an optional .env file, then the environment, applying defaults.
// PRE: none
// POST: returns a validated Config or the first problem found
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function (os.LookupEnv in production).
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		Addr:              get("RANCHO_ADDR", ":3000"),
		Env:               get("RANCHO_ENV", "development"),
		DBPath:            get("RANCHO_DB_PATH", "rancho.db"),
		StaticDir:         get("RANCHO_STATIC_DIR", "static"),
		AdminPasswordHash: get("RANCHO_ADMIN_PASSWORD_HASH", ""),
		AdminPassword:     get("RANCHO_ADMIN_PASSWORD", ""),
		RedisURL:          get("RANCHO_REDIS_URL", ""),
		ResendKey:         get("RANCHO_RESEND_KEY", ""),
		ResendFrom:        get("RANCHO_RESEND_FROM", "Rancho <noreply@localhost>"),
		AlertEmail:        get("RANCHO_ALERT_EMAIL", ""),
	}
	cfg.UploadDir = get("RANCHO_UPLOAD_DIR", cfg.StaticDir+"/uploads")

	var err error
	if cfg.SessionTTL, err = parseDuration(get("RANCHO_SESSION_TTL", "24h"), "RANCHO_SESSION_TTL"); err != nil {
		return nil, err
	}
	if cfg.SlowQuery, err = parseMillis(get("RANCHO_SLOW_QUERY_MS", "50"), "RANCHO_SLOW_QUERY_MS"); err != nil {
		return nil, err
	}
	if cfg.SlowRequest, err = parseMillis(get("RANCHO_SLOW_REQUEST_MS", "200"), "RANCHO_SLOW_REQUEST_MS"); err != nil {
		return nil, err
	}

	cfg.LoginRate, err = strconv.ParseFloat(get("RANCHO_LOGIN_RATE", "1"), 64)
	if err != nil || cfg.LoginRate <= 0 {
		return nil, errors.New("RANCHO_LOGIN_RATE must be a positive number")
	}
	cfg.LoginBurst, err = strconv.Atoi(get("RANCHO_LOGIN_BURST", "5"))
	if err != nil || cfg.LoginBurst <= 0 {
		return nil, errors.New("RANCHO_LOGIN_BURST must be a positive integer")
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(get("RANCHO_LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("RANCHO_LOG_LEVEL: %w", err)
	}

	if keyHex := get("RANCHO_CSRF_KEY", ""); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return nil, errors.New("RANCHO_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		cfg.CSRFKey = key
	}

	if cfg.IsProduction() {
		if cfg.AdminPasswordHash == "" {
			return nil, errors.New("RANCHO_ADMIN_PASSWORD_HASH is required in production")
		}
		if cfg.CSRFKey == nil {
			return nil, errors.New("RANCHO_CSRF_KEY is required in production")
		}
		cfg.AdminPassword = ""
	} else if cfg.AdminPasswordHash == "" && cfg.AdminPassword == "" {
		cfg.AdminPassword = DevAdminPassword
	}

	return cfg, nil
}

func parseDuration(v, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration like 12h", key)
	}
	return d, nil
}

func parseMillis(v, key string) (time.Duration, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return time.Duration(n) * time.Millisecond, nil
}
