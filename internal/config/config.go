package config

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

var validBackends = []string{BackendSQLite, BackendPostgres, BackendMemory}

type Config struct {
	// HTTP Server
	Port           string
	Production     bool
	TrustedProxies []string

	// Database
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// Backups
	BackupDir       string
	BackupRetention int

	// Auth
	SecretKey        string
	SecretKeyFile    string
	SessionTTL       time.Duration
	RememberTTL      time.Duration
	LoginMaxAttempts int
	LoginLockout     time.Duration
	RedisURL         string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// KPI sheet worker
	GoogleSpreadsheetID string
	KPISheetName        string
	SyncInterval        time.Duration
	SyncDryRun          bool

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "5000"),
		Production:     getEnvBool("PRODUCTION", false) || os.Getenv("RENDER") != "",
		TrustedProxies: getEnvList("TRUSTED_PROXIES"),

		DataBackend:  getEnv("DATA_BACKEND", BackendSQLite),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "instance/academy.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		BackupDir:       getEnv("BACKUP_DIR", "backups"),
		BackupRetention: getEnvInt("BACKUP_RETENTION", 20),

		SecretKey:        os.Getenv("SECRET_KEY"),
		SecretKeyFile:    getEnv("SECRET_KEY_FILE", "instance/.secret_key"),
		SessionTTL:       getEnvDuration("SESSION_TTL", 8*time.Hour),
		RememberTTL:      getEnvDuration("REMEMBER_ME_TTL", 30*24*time.Hour),
		LoginMaxAttempts: getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginLockout:     getEnvDuration("LOGIN_LOCKOUT", 5*time.Minute),
		RedisURL:         getEnv("REDIS_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "academy"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "kpi_sync"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		KPISheetName:        getEnv("KPI_SHEET_NAME", "KPIs"),
		SyncInterval:        getEnvDuration("SYNC_INTERVAL", time.Hour),
		SyncDryRun:          getEnvBool("SYNC_DRY_RUN", false),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration shared by every binary and returns
// all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	errs = append(errs, c.storageErrors()...)

	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.RememberTTL < c.SessionTTL {
		errs = append(errs, fmt.Sprintf("invalid remember-me TTL %v: must not be shorter than the session TTL", c.RememberTTL))
	}
	if c.LoginMaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("invalid login max attempts %d: must be at least 1", c.LoginMaxAttempts))
	}
	if c.LoginLockout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid login lockout %v: must be at least 1 second", c.LoginLockout))
	}

	if c.RedisURL != "" {
		if u, err := url.Parse(c.RedisURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid REDIS_URL: %v", err))
		} else if u.Scheme != "redis" && u.Scheme != "rediss" {
			errs = append(errs, fmt.Sprintf("invalid REDIS_URL scheme '%s': must be 'redis' or 'rediss'", u.Scheme))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				errs = append(errs, fmt.Sprintf("invalid trusted proxy '%s': must be an IP or CIDR", p))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// ValidateStorage checks only the database and backup settings, which is
// all the maintenance commands need.
func (c *Config) ValidateStorage() error {
	if errs := c.storageErrors(); len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func (c *Config) storageErrors() []string {
	var errs []string

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else if err := ensureDir(filepath.Dir(c.SQLiteDBPath)); err != nil {
			errs = append(errs, fmt.Sprintf("cannot create SQLite database directory: %v", err))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errs = append(errs, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if c.BackupRetention < 1 {
		errs = append(errs, fmt.Sprintf("invalid backup retention %d: must be at least 1", c.BackupRetention))
	}
	if c.DataBackend == BackendSQLite && c.BackupDir == "" {
		errs = append(errs, "backup directory cannot be empty when using sqlite backend")
	}
	return errs
}

// ValidateWorker adds the checks the KPI sync worker needs on top of Validate.
func (c *Config) ValidateWorker() error {
	var errs []string
	if err := c.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.DataBackend == BackendMemory {
		errs = append(errs, "the KPI worker needs a shared database, memory backend is not supported")
	}
	if c.AMQPURL == "" {
		errs = append(errs, "AMQP_URL is required for the KPI worker")
	}
	if c.GoogleSpreadsheetID == "" && !c.SyncDryRun {
		errs = append(errs, "GOOGLE_SPREADSHEET_ID is required unless SYNC_DRY_RUN is set")
	}
	if c.SyncInterval < time.Minute || c.SyncInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be between 1 minute and 24 hours", c.SyncInterval))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "\n- "))
	}
	return nil
}

// CSRFKey returns the 32-byte key derived from SECRET_KEY. Without one, a
// random secret is generated once and kept in SecretKeyFile.
func (c *Config) CSRFKey() ([]byte, error) {
	secret := strings.TrimSpace(c.SecretKey)
	if secret == "" {
		var err error
		if secret, err = loadOrCreateSecret(c.SecretKeyFile); err != nil {
			return nil, err
		}
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:], nil
}

func loadOrCreateSecret(path string) (string, error) {
	if b, err := os.ReadFile(path); err == nil {
		if s := strings.TrimSpace(string(b)); s != "" {
			return s, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read secret key file: %w", err)
	}

	if err := ensureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret key: %w", err)
	}
	secret := hex.EncodeToString(buf)
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return "", fmt.Errorf("write secret key file: %w", err)
	}
	return secret, nil
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory '%s': %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(key), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
