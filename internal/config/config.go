// Package config loads the guide shop's settings from environment variables.
//
// Every variable has a default. Malformed values (a duration that does not
// parse, a port that is not a number) are reported instead of silently
// replaced, and all problems found by Load are returned together.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists origins allowed to call the API. Empty allows all.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT, host:port
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// GenerationConfig controls the LLM-backed content generator.
type GenerationConfig struct {
	OpenAIKey   string // empty: generation endpoints report unavailable
	OpenAIURL   string // optional proxy base URL
	Model       string
	Variant     string // basic|chunked|resilient
	Timeout     time.Duration
	GuideDays   int // default itinerary length
	MaxDays     int // upper bound for day-content previews
	Temperature float64
}

// PaymentConfig holds Stripe credentials and checkout redirect URLs.
type PaymentConfig struct {
	StripeKey     string // empty: manual provider
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

// MailConfig holds SMTP settings. An empty Host selects the log sender.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Config is the full application configuration.
type Config struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	LogLevel       string // trace|debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	DBPath          string
	CatalogPath     string // destinations seed (YAML)
	DownloadsDir    string // generated guides, served under /downloads
	StaticAssetsDir string // pre-built products, served under /guides
	PublicBaseURL   string // prefix for links in confirmation emails

	CachePath string
	CacheTTL  time.Duration // 0 disables expiry

	Generation GenerationConfig
	Payment    PaymentConfig
	Mail       MailConfig

	QueueBuffer    int    // pending jobs before Add rejects
	ResumeSchedule string // cron spec for the stuck-purchase scan; empty disables

	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// MustLoad is Load for callers that cannot continue without configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads, normalizes and validates the configuration.
func Load() (Config, error) {
	var e env
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.duration("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.duration("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.duration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       e.duration("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.boolean("LOG_PRETTY", false),
		SwaggerEnabled: e.boolean("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DBPath:          e.str("DB_PATH", "data/app.db"),
		CatalogPath:     e.str("CATALOG_PATH", "data/destinations.yaml"),
		DownloadsDir:    e.str("DOWNLOADS_DIR", "public/downloads"),
		StaticAssetsDir: e.str("STATIC_ASSETS_DIR", "public/guides"),
		PublicBaseURL:   strings.TrimRight(e.str("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		CachePath: e.str("CACHE_PATH", "data/content-cache.json"),
		CacheTTL:  e.duration("CACHE_TTL", 7*24*time.Hour),

		Generation: GenerationConfig{
			OpenAIKey:   e.str("OPENAI_API_KEY", ""),
			OpenAIURL:   e.str("OPENAI_BASE_URL", ""),
			Model:       e.str("OPENAI_MODEL", "gpt-4o-mini"),
			Variant:     strings.ToLower(e.str("GENERATION_VARIANT", "resilient")),
			Timeout:     e.duration("GENERATION_TIMEOUT", 5*time.Minute),
			GuideDays:   e.integer("GUIDE_DAYS", 5),
			MaxDays:     e.integer("MAX_GUIDE_DAYS", 14),
			Temperature: e.number("OPENAI_TEMPERATURE", 0.7),
		},
		Payment: PaymentConfig{
			StripeKey:     e.str("STRIPE_SECRET_KEY", ""),
			WebhookSecret: e.str("STRIPE_WEBHOOK_SECRET", ""),
			Currency:      strings.ToLower(e.str("PAYMENT_CURRENCY", "usd")),
			SuccessURL:    e.str("CHECKOUT_SUCCESS_URL", "http://localhost:5173/purchase/success?session_id={CHECKOUT_SESSION_ID}"),
			CancelURL:     e.str("CHECKOUT_CANCEL_URL", "http://localhost:5173/purchase/cancelled"),
		},
		Mail: MailConfig{
			Host:     e.str("SMTP_HOST", ""),
			Port:     e.integer("SMTP_PORT", 587),
			Username: e.str("SMTP_USERNAME", ""),
			Password: e.str("SMTP_PASSWORD", ""),
			From:     e.str("MAIL_FROM", "guides@deeptravelcollection.com"),
			FromName: e.str("MAIL_FROM_NAME", "Deep Travel Collection"),
		},

		QueueBuffer:    e.integer("QUEUE_BUFFER", 256),
		ResumeSchedule: e.str("RESUME_SCHEDULE", "@every 10m"),

		RateRPS:   e.number("RATE_RPS", 5.0),
		RateBurst: e.integer("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: e.boolean("ENABLE_HSTS", false),
			HSTSMaxAge: e.duration("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.duration("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.boolean("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "deeptravel-guides"),
			SampleRatio: e.number("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	if err := errors.Join(append(e.errs, cfg.validate()...)...); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	if !oneOf(cfg.GinMode, "debug", "release", "test") {
		cfg.GinMode = "release"
	}
	if !oneOf(cfg.Generation.Variant, "basic", "chunked", "resilient") {
		cfg.Generation.Variant = "resilient"
	}
}

func (cfg *Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	check(oneOf(cfg.LogLevel, "trace", "debug", "info", "warn", "error", "fatal", "panic"),
		"LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic")
	check(!blank(cfg.Port), "PORT must not be empty")
	check(cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	check(!blank(cfg.DBPath), "DB_PATH must not be empty")
	check(!blank(cfg.DownloadsDir), "DOWNLOADS_DIR must not be empty")
	check(!blank(cfg.CachePath), "CACHE_PATH must not be empty")
	check(cfg.CacheTTL >= 0, "CACHE_TTL must be >= 0")

	g := cfg.Generation
	check(g.Timeout > 0, "GENERATION_TIMEOUT must be > 0")
	check(g.GuideDays >= 1 && g.GuideDays <= g.MaxDays, "GUIDE_DAYS must be >= 1 and <= MAX_GUIDE_DAYS")
	check(g.Temperature >= 0 && g.Temperature <= 2, "OPENAI_TEMPERATURE must be in [0,2]")

	p := cfg.Payment
	check(len(p.Currency) == 3, "PAYMENT_CURRENCY must be a 3-letter ISO code")
	check(p.StripeKey == "" || p.WebhookSecret != "", "STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")

	m := cfg.Mail
	check(m.Host == "" || (m.Port > 0 && m.From != ""), "SMTP_PORT and MAIL_FROM are required when SMTP_HOST is set")

	check(cfg.QueueBuffer >= 1, "QUEUE_BUFFER must be >= 1")
	check(cfg.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(cfg.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(cfg.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// env reads typed variables and remembers every value that failed to parse.
// An unset or empty variable yields the default.
type env struct {
	errs []error
}

func (e *env) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	return v, ok && v != ""
}

func (e *env) fail(k, v, kind string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q is not a valid %s", k, v, kind))
}

func (e *env) str(k, def string) string {
	if v, ok := e.lookup(k); ok {
		return v
	}
	return def
}

func (e *env) integer(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, "integer")
		return def
	}
	return n
}

func (e *env) number(k string, def float64) float64 {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.fail(k, v, "number")
		return def
	}
	return f
}

func (e *env) boolean(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.fail(k, v, "boolean")
	return def
}

func (e *env) duration(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.fail(k, v, "duration")
		return def
	}
	return d
}

func oneOf(s string, allowed ...string) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath returns p with a leading slash and no trailing one,
// except for the root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
