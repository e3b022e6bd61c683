package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Logs      LogConfig
	DB        PostgresConfig
	Auth      AuthConfig
	Stripe    StripeConfig
	Email     EmailConfig
	Analytics AnalyticsConfig
	Redis     RedisConfig
	Cron      CronConfig
	Ingest    IngestConfig
	QueueURL  string
	SiteURL   string
	// Workers is the number of queue consumers the worker runs.
	Workers   int
}

type LogConfig struct {
	Style string
	Level string
}

type PostgresConfig struct {
	DSN      string
	Username string
	Password string
	URL      string
	Port     string
	Name     string
}

type AuthConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceIDs      map[string]string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	From         string
	ReplyTo      string
	AdminTo      string
}

type AnalyticsConfig struct {
	PostHogKey  string
	PostHogHost string
}

type RedisConfig struct {
	Addr     string
	Password string
}

type CronConfig struct {
	Secret           string
	IngestSchedule   string
	SentinelSchedule string
}

type IngestConfig struct {
	CodeEnforcementURL string
	ParkingURL         string
	STROURL            string
	TOTURL             string
	LeadsCSVPath       string
}

const (
	defaultCodeEnforcementURL = "https://seshat.datasd.org/code_enforcement_violations/code_enf_past_3_yr_datasd.csv"
	defaultParkingURL         = "https://seshat.datasd.org/parking_citations/parking_citations_2024_part1_datasd.csv"
	defaultSTROURL            = "https://seshat.datasd.org/stro_licenses/stro_licenses_datasd.csv"
	defaultTOTURL             = "https://seshat.datasd.org/tot_establishments/tot_establishments_datasd.csv"
)

func LoadConfig() (*Config, error) {
	smtpPort := 587
	if v := strings.TrimSpace(os.Getenv("SMTP_PORT")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("converting SMTP_PORT to int: %w", err)
		}
		smtpPort = p
	}

	cfg := &Config{
		Workers:  workerCount(),
		QueueURL: os.Getenv("QUEUE_URL"),
		SiteURL:  strings.TrimRight(getEnv("SITE_URL", "https://doggybagg.cc"), "/"),
		Logs: LogConfig{
			Style: os.Getenv("LOG_STYLE"),
			Level: os.Getenv("LOG_LEVEL"),
		},
		DB: PostgresConfig{
			DSN:      os.Getenv("DATABASE_URL"),
			Username: os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PWD"),
			URL:      os.Getenv("POSTGRES_URL"),
			Port:     os.Getenv("POSTGRES_PORT"),
			Name:     os.Getenv("POSTGRES_DB"),
		},
		Auth: AuthConfig{
			Issuer:   strings.TrimSpace(os.Getenv("AUTH_ISSUER")),
			Audience: strings.TrimSpace(getEnv("AUTH_AUDIENCE", "authenticated")),
			JWKSURL:  strings.TrimSpace(os.Getenv("AUTH_JWKS_URL")),
		},
		Stripe: StripeConfig{
			SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			PriceIDs: map[string]string{
				"starter-plan":      os.Getenv("STRIPE_STARTER_PRICE_ID"),
				"professional-plan": os.Getenv("STRIPE_PROFESSIONAL_PRICE_ID"),
				"enterprise-plan":   os.Getenv("STRIPE_ENTERPRISE_PRICE_ID"),
				"portfolio-audit":   os.Getenv("STRIPE_AUDIT_PRICE_ID"),
			},
		},
		Email: EmailConfig{
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     smtpPort,
			SMTPUser:     os.Getenv("SMTP_USER"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			From:         getEnv("EMAIL_FROM", "DoggyBagg <notifications@doggybagg.cc>"),
			ReplyTo:      getEnv("EMAIL_REPLY_TO", "support@doggybagg.cc"),
			AdminTo:      getEnv("EMAIL_ADMIN_TO", "admin@doggybagg.cc"),
		},
		Analytics: AnalyticsConfig{
			PostHogKey:  os.Getenv("POSTHOG_KEY"),
			PostHogHost: getEnv("POSTHOG_HOST", "https://us.i.posthog.com"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Cron: CronConfig{
			Secret:           os.Getenv("CRON_SECRET"),
			IngestSchedule:   os.Getenv("INGEST_SCHEDULE"),
			SentinelSchedule: os.Getenv("SENTINEL_SCHEDULE"),
		},
		Ingest: IngestConfig{
			CodeEnforcementURL: getEnv("INGEST_CODE_ENFORCEMENT_URL", defaultCodeEnforcementURL),
			ParkingURL:         getEnv("INGEST_PARKING_URL", defaultParkingURL),
			STROURL:            getEnv("INGEST_STRO_URL", defaultSTROURL),
			TOTURL:             getEnv("INGEST_TOT_URL", defaultTOTURL),
			LeadsCSVPath:       getEnv("LEADS_CSV_PATH", "leads_crm.csv"),
		},
	}

	return cfg, nil
}

// PostgresDSN prefers DATABASE_URL and otherwise assembles a DSN from the
// individual POSTGRES_* settings. Empty means no store is configured.
func (c PostgresConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	if c.URL == "" {
		return ""
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s", c.Username, c.Password, c.URL, c.Port)
	if c.Name != "" {
		dsn += "/" + c.Name
	}
	return dsn
}

// Configured reports whether SMTP delivery can be attempted.
func (c EmailConfig) Configured() bool {
	return c.SMTPHost != "" && c.SMTPUser != ""
}

// workerCount defaults to the number of CPUs. WORKERS overrides it.
func workerCount() int {
	n := runtime.NumCPU()
	if v := os.Getenv("WORKERS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	return n
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
