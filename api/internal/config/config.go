package config

import (
	"log"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	StaticDir string

	// LLMProvider: движок по умолчанию: "gpt" | "gemini".
	LLMProvider   string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiModel   string

	RequestTimeout time.Duration

	LogLevel  string
	LogFormat string

	// Аудит вызовов в Postgres; пустой DSN: аудит выключен.
	DatabaseURL        string
	AuditRetention     time.Duration
	AuditPruneSchedule string

	TelegramBotToken string
	WebhookURL       string
}

// MustEnv для обязательных переменных (бот без токена не стартует).
func MustEnv(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("config: bad %s=%q, using %s", k, v, def)
		return def
	}
	return d
}

// Load читает .env (если есть) и переменные окружения. Ключи API не
// обязательны: без них работают / и /health, а инференс отвечает 500.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8000"),
		StaticDir: getEnv("STATIC_DIR", "static"),

		LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", "gpt")),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("MODEL", getEnv("OPENAI_MODEL", "gpt-4.1-mini")),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		RequestTimeout: getDuration("REQUEST_TIMEOUT", 180*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		DatabaseURL:        resolveDSN(),
		AuditRetention:     getDuration("AUDIT_RETENTION", 720*time.Hour),
		AuditPruneSchedule: getEnv("AUDIT_PRUNE_SCHEDULE", "0 3 * * *"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
	}
}

// Model возвращает модель движка по умолчанию (для /health).
func (c *Config) Model() string {
	if c.LLMProvider == "gemini" {
		return c.GeminiModel
	}
	return c.OpenAIModel
}

// resolveDSN: DATABASE_URL, иначе DSN из POSTGRES_*/PG*, но только если задан PGHOST.
// Без обоих аудит выключен.
func resolveDSN() string {
	if v := getEnv("DATABASE_URL", ""); v != "" {
		return v
	}
	host := getEnv("PGHOST", "")
	if host == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "gptproxy"), os.Getenv("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(host, getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "gptproxy"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
