package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gpt-proxy/api/internal/app"
	"gpt-proxy/api/internal/config"
	"gpt-proxy/api/internal/handle"
	"gpt-proxy/api/internal/httpserver"
	"gpt-proxy/api/internal/logging"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(ctx, cfg, logger)
	defer a.Close()

	mux := http.NewServeMux()
	handle.New(a.Service, cfg.StaticDir, cfg.RequestTimeout, logger).Routes(mux)
	mux.Handle("/metrics", a.Metrics.Handler())

	h := httpserver.Chain(mux,
		httpserver.RequestID,
		httpserver.Recover(logger),
		httpserver.AccessLog(logger, a.Metrics, "/", "/health", "/infer", "/summarize_pdf", "/healthz", "/metrics"),
	)

	logger.Infow("gpt-proxy starting",
		"port", cfg.Port, "provider", cfg.LLMProvider, "model", cfg.Model(), "static_dir", cfg.StaticDir)
	if err := httpserver.Run(ctx, ":"+cfg.Port, h, logger); err != nil {
		logger.Errorw("server stopped", "err", err)
		os.Exit(1)
	}
}
