package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port      string
	Env       string // "dev" (default) or "prod". When "prod", JWT_SECRET must be set and not the default.
	LogFormat string // "text" (default) or "json" for structured logging.

	DBHost string
	DBPort string
	DBName string
	DBUser string
	DBPass string

	// DBMaxOpenConns is the maximum number of open connections to the database (default 25).
	DBMaxOpenConns int
	// DBMaxIdleConns is the maximum number of idle connections (default 5).
	DBMaxIdleConns int

	JWTSecret string
	// JWTExpireHours is the token lifetime in hours (default 24). Set via JWT_EXPIRE_HOURS.
	JWTExpireHours int

	// AdminUser and AdminPassHash are the credentials for the admin API.
	// AdminPassHash is a bcrypt hash; when empty, login accepts the username alone (dev only).
	AdminUser     string
	AdminPassHash string

	// BackupDir is the directory where archive files are written and pruned.
	BackupDir string

	// Timezone is the IANA zone used to interpret job times-of-day (e.g. "Europe/Berlin").
	Timezone string

	// SMTP settings for email-delivered backups. When SMTPHost is empty,
	// email delivery is disabled and email-stored jobs log a warning instead.
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	// When empty, the API listens with plain HTTP.
	TLSCertFile string
	TLSKeyFile  string

	// CORSAllowedOrigins is a list of origins allowed for CORS (e.g. https://app.example.com).
	// Set via CORS_ALLOWED_ORIGINS (comma-separated). When empty, no CORS headers are sent (same-origin only).
	CORSAllowedOrigins []string
}

func Load() Config {
	return Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "dev"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DBHost: getEnv("DB_HOST", "localhost"),
		DBPort: getEnv("DB_PORT", "5432"),
		DBName: getEnv("DB_NAME", "appdb"),
		DBUser: getEnv("DB_USER", "appuser"),
		DBPass: getEnv("DB_PASS", "apppass"),

		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		JWTSecret:      getEnv("JWT_SECRET", "supersecretkey"),
		JWTExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),

		AdminUser:     getEnv("ADMIN_USER", "admin"),
		AdminPassHash: getEnv("ADMIN_PASS_HASH", ""),

		BackupDir: getEnv("BACKUP_DIR", "./db-backups"),

		// Matches the historical default for installs that never set a zone.
		Timezone: getEnv("TIMEZONE", "America/Los_Angeles"),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", "backups@localhost"),

		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		CORSAllowedOrigins: parseCORSOrigins(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// DatabaseURL returns the postgres DSN in URL form, used by migrations.
func (c Config) DatabaseURL() string {
	return "postgres://" + c.DBUser + ":" + c.DBPass + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=disable"
}

// parseCORSOrigins splits a comma-separated list of origins and trims spaces. Empty strings are omitted.
func parseCORSOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
