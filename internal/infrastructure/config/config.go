// Package config provides configuration management for the data-security core using Viper.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// KeyIDs that must have material configured. Callers reference encryption
// keys by these identifiers.
var KeyIDs = []string{
	"default",
	"user_pii",
	"user_auth",
	"financial",
	"report_content",
	"contact_data",
	"file_paths",
	"session",
	"config",
}

// Config holds all configuration for the data-security core.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Encryption EncryptionConfig `mapstructure:"encryption"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Alerts     AlertConfig      `mapstructure:"alerts"`
	Email      EmailConfig      `mapstructure:"email"`
	Logger     LoggerConfig     `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"`
}

// IsProduction reports whether the service runs in production mode.
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// DatabaseConfig holds primary and replica database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`

	// ReplicaHosts is a comma-separated list of host[:port] entries for
	// read replicas. Replicas share the primary's credentials.
	ReplicaHosts string `mapstructure:"replica_hosts"`

	AcquireTimeout     time.Duration `mapstructure:"acquire_timeout"`
	StatementTimeout   time.Duration `mapstructure:"statement_timeout"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`

	HealthCheckEnabled  bool          `mapstructure:"health_check_enabled"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

// ConnectionString returns the PostgreSQL connection string for the primary.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// ReplicaConnectionStrings returns one connection string per configured
// replica host. Hosts without an explicit port use the primary's port.
func (c *DatabaseConfig) ReplicaConnectionStrings() []string {
	if strings.TrimSpace(c.ReplicaHosts) == "" {
		return nil
	}
	var out []string
	for _, h := range strings.Split(c.ReplicaHosts, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		host, port := h, c.Port
		if i := strings.LastIndex(h, ":"); i > 0 {
			host = h[:i]
			if p, err := strconv.Atoi(h[i+1:]); err == nil && p > 0 {
				port = p
			} else {
				log.Warn().Str("replica", h).Int("port", c.Port).
					Msg("Invalid replica port; using the primary's port")
			}
		}
		out = append(out, fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			host, port, c.User, c.Password, c.Name, c.SSLMode,
		))
	}
	return out
}

// RedisConfig holds Redis configuration for the security cache.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Address returns the Redis address.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KeyMaterial holds the configured secret and salt for one key identifier.
type KeyMaterial struct {
	Secret string `mapstructure:"secret"`
	Salt   string `mapstructure:"salt"`
}

// RotationConfig controls the key-rotation policy.
type RotationConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxAge           time.Duration `mapstructure:"max_age"`
	WarningThreshold time.Duration `mapstructure:"warning_threshold"`
	CheckInterval    time.Duration `mapstructure:"check_interval"`
	// Enforce rotates keys past max age instead of only warning.
	Enforce bool `mapstructure:"enforce"`
}

// EncryptionConfig holds key material and rotation policy.
type EncryptionConfig struct {
	Keys     map[string]KeyMaterial `mapstructure:"keys"`
	Rotation RotationConfig         `mapstructure:"rotation"`
}

// AuditConfig holds audit trail configuration.
type AuditConfig struct {
	RetentionDays       int           `mapstructure:"retention_days"`
	FlushInterval       time.Duration `mapstructure:"flush_interval"`
	BufferSize          int           `mapstructure:"buffer_size"`
	EncryptDetails      bool          `mapstructure:"encrypt_details"`
	RetentionSchedule   string        `mapstructure:"retention_schedule"`
	ComplianceMode      bool          `mapstructure:"compliance_mode"`
	ExportDestination   string        `mapstructure:"export_destination"`
	KeyAgeCheckSchedule string        `mapstructure:"key_age_check_schedule"`
}

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	RealTime     bool          `mapstructure:"real_time"`
	LockDuration time.Duration `mapstructure:"lock_duration"`
	Recipients   []string      `mapstructure:"recipients"`
}

// EmailConfig holds SMTP configuration for alert notifications.
type EmailConfig struct {
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds metrics collection configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// Load reads configuration from file and environment variables and
// validates it. Missing encryption secrets fail fast in production rather
// than falling back to generated ephemeral keys.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants that must hold before services are constructed.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return errors.New("database.max_open_conns must be positive")
	}
	if c.Audit.RetentionDays <= 0 {
		return errors.New("audit.retention_days must be positive")
	}
	if c.Audit.FlushInterval <= 0 {
		return errors.New("audit.flush_interval must be positive")
	}

	// Ephemeral generated keys are unsafe outside development: any data
	// they encrypt is lost on restart. Refuse to start without material.
	if c.App.IsProduction() {
		for _, id := range KeyIDs {
			km, ok := c.Encryption.Keys[id]
			if !ok || km.Secret == "" || km.Salt == "" {
				return fmt.Errorf("encryption key %q has no configured secret/salt", id)
			}
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "datacore")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.env", "development")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "datacore")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "datacore_db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.replica_hosts", "")
	v.SetDefault("database.acquire_timeout", 5*time.Second)
	v.SetDefault("database.statement_timeout", 30*time.Second)
	v.SetDefault("database.slow_query_threshold", 500*time.Millisecond)
	v.SetDefault("database.health_check_enabled", true)
	v.SetDefault("database.health_check_interval", 30*time.Second)

	// Redis defaults
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 2)

	// Encryption defaults
	v.SetDefault("encryption.rotation.enabled", true)
	v.SetDefault("encryption.rotation.max_age", 90*24*time.Hour)
	v.SetDefault("encryption.rotation.warning_threshold", 75*24*time.Hour)
	v.SetDefault("encryption.rotation.check_interval", 24*time.Hour)
	v.SetDefault("encryption.rotation.enforce", false)

	// Audit defaults (retention reflects a 7-year compliance horizon)
	v.SetDefault("audit.retention_days", 2555)
	v.SetDefault("audit.flush_interval", 5*time.Second)
	v.SetDefault("audit.buffer_size", 1000)
	v.SetDefault("audit.encrypt_details", false)
	v.SetDefault("audit.retention_schedule", "0 3 * * *")
	v.SetDefault("audit.key_age_check_schedule", "0 4 * * *")
	v.SetDefault("audit.compliance_mode", true)
	v.SetDefault("audit.export_destination", "./exports")

	// Alert defaults
	v.SetDefault("alerts.real_time", true)
	v.SetDefault("alerts.lock_duration", 30*time.Minute)
	v.SetDefault("alerts.recipients", []string{})

	// Email defaults
	v.SetDefault("email.smtp_host", "localhost")
	v.SetDefault("email.smtp_port", 1025)
	v.SetDefault("email.smtp_user", "")
	v.SetDefault("email.smtp_password", "")
	v.SetDefault("email.from_address", "security@datacore.local")
	v.SetDefault("email.from_name", "Data Security Core")

	// Logger defaults
	v.SetDefault("logging.level", "debug")
	v.SetDefault("logging.format", "console")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", ":9205")
}

func bindEnvVars(v *viper.Viper) {
	envBindings := []struct {
		key     string
		envName string
	}{
		// Database
		{"database.host", "DATABASE_HOST"},
		{"database.port", "DATABASE_PORT"},
		{"database.user", "DATABASE_USER"},
		{"database.password", "DATABASE_PASSWORD"},
		{"database.name", "DATABASE_NAME"},
		{"database.ssl_mode", "DATABASE_SSLMODE"},
		{"database.replica_hosts", "DATABASE_REPLICA_HOSTS"},
		{"database.slow_query_threshold", "DATABASE_SLOW_QUERY_THRESHOLD"},
		// Redis
		{"redis.enabled", "REDIS_ENABLED"},
		{"redis.host", "REDIS_HOST"},
		{"redis.port", "REDIS_PORT"},
		{"redis.password", "REDIS_PASSWORD"},
		// Audit
		{"audit.retention_days", "AUDIT_RETENTION_DAYS"},
		{"audit.encrypt_details", "AUDIT_ENCRYPT_DETAILS"},
		// Alerts
		{"alerts.real_time", "ALERTS_REAL_TIME"},
		// Email
		{"email.smtp_host", "SMTP_HOST"},
		{"email.smtp_port", "SMTP_PORT"},
		{"email.smtp_user", "SMTP_USER"},
		{"email.smtp_password", "SMTP_PASSWORD"},
		// App
		{"app.env", "APP_ENV"},
		{"logging.level", "LOG_LEVEL"},
	}

	for _, binding := range envBindings {
		if err := v.BindEnv(binding.key, binding.envName); err != nil {
			fmt.Printf("Warning: failed to bind env %s: %v\n", binding.envName, err)
		}
	}

	// Per-key secrets and salts, e.g. ENCRYPTION_KEY_USER_PII_SECRET.
	for _, id := range KeyIDs {
		upper := strings.ToUpper(id)
		_ = v.BindEnv("encryption.keys."+id+".secret", "ENCRYPTION_KEY_"+upper+"_SECRET")
		_ = v.BindEnv("encryption.keys."+id+".salt", "ENCRYPTION_KEY_"+upper+"_SALT")
	}
}
