package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	MailDriverResend = "resend"
	MailDriverSMTP   = "smtp"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Groq     GroqConfig
	Mail     MailConfig
	Waha     WahaConfig
	Reminder ReminderConfig
	Worker   WorkerConfig
}

type AppConfig struct {
	Env       string `envconfig:"APP_ENV" default:"development"`
	Port      string `envconfig:"PORT" default:"8080"`
	Timezone  string `envconfig:"APP_TIMEZONE" default:"America/Bogota"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Location resolves the configured time zone used for calendar-day arithmetic.
func (a AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	URL             string        `envconfig:"DATABASE_URL"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"100"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
	AutoMigrate     bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type RedisConfig struct {
	URL     string        `envconfig:"REDIS_URL"`
	LockTTL time.Duration `envconfig:"REDIS_LOCK_TTL" default:"2m"`
}

type AuthConfig struct {
	// ServiceKey is accepted as a bearer token from cron/edge callers.
	ServiceKey          string `envconfig:"SERVICE_KEY"`
	FirebaseCredentials string `envconfig:"FIREBASE_CREDENTIALS_PATH" default:"./firebase-service-account.json"`
}

type GroqConfig struct {
	APIKey  string        `envconfig:"GROQ_API_KEY"`
	BaseURL string        `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`
	Model   string        `envconfig:"GROQ_MODEL" default:"llama-3.3-70b-versatile"`
	Timeout time.Duration `envconfig:"GROQ_TIMEOUT" default:"20s"`
}

type MailConfig struct {
	Driver       string `envconfig:"MAIL_DRIVER" default:"resend"`
	From         string `envconfig:"MAIL_FROM" default:"Strimo <recordatorios@strimoapp.site>"`
	ResendAPIKey string `envconfig:"RESEND_API_KEY"`
	ResendURL    string `envconfig:"RESEND_BASE_URL" default:"https://api.resend.com"`
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     string `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASS"`
}

type WahaConfig struct {
	BaseURL string `envconfig:"WAHA_BASE_URL" default:"http://waha:3000"`
	APIKey  string `envconfig:"WAHA_API_KEY"`
	Session string `envconfig:"WAHA_SESSION" default:"default"`
}

type ReminderConfig struct {
	Concurrency int `envconfig:"REMINDER_CONCURRENCY" default:"4"`
}

type WorkerConfig struct {
	Schedule string `envconfig:"WORKER_SCHEDULE" default:"@every 5m"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Mail.Driver {
	case MailDriverResend, MailDriverSMTP:
	default:
		return fmt.Errorf("unsupported MAIL_DRIVER %q", c.Mail.Driver)
	}
	if c.Reminder.Concurrency < 1 {
		c.Reminder.Concurrency = 1
	}
	if _, err := c.App.Location(); err != nil {
		return err
	}
	return nil
}
