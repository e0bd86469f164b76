package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Port             string        `yaml:"port"`
	DBDriver         string        `yaml:"db_driver"`
	DBConn           string        `yaml:"database_url"`
	LogLevel         string        `yaml:"log_level"`
	SessionSecret    string        `yaml:"secret_key"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	UploadDir        string        `yaml:"upload_dir"`
	MaxUploadMB      int64         `yaml:"max_upload_mb"`
	SMTPHost         string        `yaml:"smtp_host"`
	SMTPPort         string        `yaml:"smtp_port"`
	SMTPUsername     string        `yaml:"smtp_username"`
	SMTPPassword     string        `yaml:"smtp_password"`
	SenderEmail      string        `yaml:"sender_email"`
	ReminderEnabled  bool          `yaml:"reminder_enabled"`
	ReminderSchedule string        `yaml:"reminder_schedule"`
}

// Defaults returns the configuration used when nothing else is set
func Defaults() *Config {
	return &Config{
		Port:             "8080",
		DBDriver:         "postgres",
		DBConn:           "host=localhost port=5432 user=prestamos password=prestamos dbname=prestamos sslmode=disable",
		LogLevel:         "info",
		SessionTTL:       24 * time.Hour,
		UploadDir:        "static/uploads",
		MaxUploadMB:      10,
		SMTPPort:         "587",
		SenderEmail:      "no-reply@prestamos.local",
		ReminderEnabled:  true,
		ReminderSchedule: "0 9 * * *",
	}
}

// NewConfig loads configuration from a .env file, an optional YAML file named
// by CONFIG_FILE and environment variables, in increasing precedence.
func NewConfig() (*Config, error) {
	// A missing .env is fine outside local development
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBConn = getEnv("DB_CONN", c.DBConn)
	c.DBConn = getEnv("DATABASE_URL", c.DBConn)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.SessionSecret = getEnv("SECRET_KEY", c.SessionSecret)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.SMTPHost = getEnv("SMTP_HOST", c.SMTPHost)
	c.SMTPPort = getEnv("SMTP_PORT", c.SMTPPort)
	c.SMTPUsername = getEnv("SMTP_USERNAME", c.SMTPUsername)
	c.SMTPPassword = getEnv("SMTP_PASSWORD", c.SMTPPassword)
	c.SenderEmail = getEnv("SENDER_EMAIL", c.SenderEmail)
	c.ReminderSchedule = getEnv("REMINDER_SCHEDULE", c.ReminderSchedule)

	if v, ok := os.LookupEnv("SESSION_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_TTL: %w", err)
		}
		c.SessionTTL = ttl
	}
	if v, ok := os.LookupEnv("MAX_UPLOAD_MB"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
		}
		c.MaxUploadMB = n
	}
	if v, ok := os.LookupEnv("REMINDER_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid REMINDER_ENABLED: %w", err)
		}
		c.ReminderEnabled = b
	}
	return nil
}

// Validate checks required settings
func (c *Config) Validate() error {
	if c.DBConn == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite3" {
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.SessionSecret == "" {
		return errors.New("SECRET_KEY is required")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	if c.UploadDir == "" {
		return errors.New("UPLOAD_DIR is required")
	}
	return nil
}

// MaxUploadBytes returns the request body limit for multipart forms
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// SMTPEnabled reports whether outgoing mail is configured
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
