// Package app собирает общий для API и бота граф зависимостей из Config.
package app

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"gpt-proxy/api/internal/config"
	"gpt-proxy/api/internal/llm"
	"gpt-proxy/api/internal/llm/gemini"
	"gpt-proxy/api/internal/llm/gpt"
	"gpt-proxy/api/internal/metrics"
	"gpt-proxy/api/internal/proxy"
	"gpt-proxy/api/internal/store"
)

type App struct {
	Service *proxy.Service
	Metrics *metrics.Metrics

	db        *sql.DB
	retention *store.Retention
}

func NewEngines(cfg *config.Config) *llm.Engines {
	return &llm.Engines{
		OpenAI:  gpt.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL),
		Gemini:  gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel),
		Default: cfg.LLMProvider,
	}
}

// New поднимает движки, метрики и, если задан DSN, аудит с ретеншеном.
// Недоступная БД не мешает старту: сервис работает без аудита.
func New(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) *App {
	a := &App{Metrics: metrics.New("gptproxy")}
	a.Service = &proxy.Service{
		Engines: NewEngines(cfg),
		Metrics: a.Metrics,
		Log:     log,
	}

	engs := a.Service.Engines
	if _, err := engs.GetEngine(""); err != nil {
		log.Warnw("unknown LLM_PROVIDER, falling back to gpt", "provider", cfg.LLMProvider)
		engs.Default = "gpt"
	}
	if def, _ := engs.GetEngine(""); !def.HasKey() {
		log.Warnw("default engine has no API key; inference will return 500", "engine", def.Name())
	}

	if cfg.DatabaseURL == "" {
		log.Infow("audit disabled: no DATABASE_URL")
		return a
	}
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warnw("audit disabled: db unavailable", "dsn", store.SafeDSNSummary(cfg.DatabaseURL), "err", err)
		return a
	}
	repo := store.NewInferenceRepo(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Warnw("audit disabled: schema", "err", err)
		_ = db.Close()
		return a
	}
	log.Infow("db connected", "dsn", store.SafeDSNSummary(cfg.DatabaseURL))

	a.db = db
	a.Service.Audit = repo
	a.retention = store.NewRetention(repo, cfg.AuditRetention, cfg.AuditPruneSchedule, log)
	if err := a.retention.Start(ctx); err != nil {
		log.Warnw("audit retention not scheduled", "schedule", cfg.AuditPruneSchedule, "err", err)
		a.retention = nil
	}
	return a
}

// DB: соединение аудита или nil.
func (a *App) DB() *sql.DB { return a.db }

func (a *App) Close() {
	if a.retention != nil {
		a.retention.Stop()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
