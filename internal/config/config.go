package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

const (
	TransportLog      = "log"
	TransportPostmark = "postmark"
	TransportSES      = "ses"
	TransportDapr     = "dapr"
)

type Config struct {
	ServiceName    string `env:"SERVICE_NAME" envDefault:"subscriber-api"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
	Port           string `env:"PORT" envDefault:"4000"`
	GinMode        string `env:"GIN_MODE"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`

	// DatabaseURL selects the Postgres store; empty keeps subscribers in memory.
	DatabaseURL       string        `env:"DATABASE_URL"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	DBConnMaxIdleTime time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"1m"`

	BaseURL       string        `env:"BASE_URL" envDefault:"http://127.0.0.1:4000"`
	SenderEmail   string        `env:"SENDER_EMAIL,required,notEmpty"`
	MailTransport string        `env:"MAIL_TRANSPORT" envDefault:"log"`
	MailTimeout   time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`

	PostmarkURL         string `env:"POSTMARK_URL" envDefault:"https://api.postmarkapp.com"`
	PostmarkServerToken string `env:"POSTMARK_SERVER_TOKEN"`

	AWSRegion          string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`

	DaprSMTPBinding string `env:"DAPR_SMTP_BINDING" envDefault:"smtp"`

	// RedisURL shares the resend cooldown across instances; empty keeps it in memory.
	RedisURL       string        `env:"REDIS_URL"`
	ResendCooldown time.Duration `env:"RESEND_COOLDOWN" envDefault:"1m"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `env:"OTEL_EXPORTER_OTLP_INSECURE"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.MailTransport {
	case TransportLog, TransportSES, TransportDapr:
	case TransportPostmark:
		if c.PostmarkServerToken == "" {
			return fmt.Errorf("POSTMARK_SERVER_TOKEN is required for the %s transport", TransportPostmark)
		}
	default:
		return fmt.Errorf("unknown MAIL_TRANSPORT %q", c.MailTransport)
	}
	if c.MailTimeout <= 0 {
		return fmt.Errorf("MAIL_TIMEOUT must be positive")
	}
	return nil
}
