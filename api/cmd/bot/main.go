package main

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"gpt-proxy/api/internal/app"
	"gpt-proxy/api/internal/config"
	"gpt-proxy/api/internal/httpserver"
	"gpt-proxy/api/internal/logging"
	"gpt-proxy/api/internal/telegram"
)

func main() {
	cfg := config.Load()
	token := config.MustEnv("TELEGRAM_BOT_TOKEN")

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(ctx, cfg, logger)
	defer a.Close()

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Fatalw("telegram init", "err", err)
	}
	bot.Debug = false

	r := &telegram.Router{
		Bot:     bot,
		Service: a.Service,
		Log:     logger.With("component", "telegram"),
		Timeout: cfg.RequestTimeout,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if db := a.DB(); db != nil {
			pctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(pctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("db: not ok\n" + err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", a.Metrics.Handler())

	addr := "0.0.0.0:" + cfg.Port
	handle := func(upd tgbotapi.Update) { r.HandleUpdate(ctx, upd) }

	if webhookURL := strings.TrimSpace(cfg.WebhookURL); webhookURL != "" {
		path, err := setupWebhook(bot, webhookURL)
		if err != nil {
			logger.Fatalw("webhook setup", "err", err)
		}
		mux.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
			upd, err := bot.HandleUpdate(req)
			if err != nil {
				logger.Warnw("webhook: bad update", "err", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			// Telegram ждёт быстрый 200, обработка идёт в фоне
			go handle(*upd)
			w.WriteHeader(http.StatusOK)
		})
		logger.Infow("webhook mode", "addr", addr, "path", path)
	} else {
		if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warnw("delete webhook", "err", err)
		}
		go runPolling(ctx, bot, handle, logger)
		logger.Infow("polling mode", "addr", addr)
	}

	h := httpserver.Chain(mux, httpserver.RequestID, httpserver.Recover(logger))
	if err := httpserver.Run(ctx, addr, h, logger); err != nil {
		logger.Errorw("server stopped", "err", err)
		os.Exit(1)
	}
}

// ---------------- Webhook -----------------

func setupWebhook(bot *tgbotapi.BotAPI, baseURL string) (string, error) {
	// секретный путь вебхука
	path := "/webhook/" + shortHash(bot.Token)
	public := strings.TrimRight(baseURL, "/") + path

	wh, err := tgbotapi.NewWebhook(public)
	if err != nil {
		return "", err
	}
	wh.DropPendingUpdates = true
	if _, err := bot.Request(wh); err != nil {
		return "", err
	}
	return path, nil
}

// ---------------- Polling loop -----------------

type updatesGetter interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

var reRetryAfter = regexp.MustCompile(`(?i)retry after\s+(\d+)`)

func retryDelayFromError(err error) time.Duration {
	if err == nil {
		return 0
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "too many requests") { // HTTP 429 от Telegram
		if m := reRetryAfter.FindStringSubmatch(s); len(m) == 2 {
			if n, _ := strconv.Atoi(m[1]); n > 0 {
				return time.Duration(n) * time.Second
			}
		}
		return 3 * time.Second
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return 2 * time.Second
	}
	return 1 * time.Second
}

func clampDelay(d time.Duration) time.Duration {
	const (
		baseDelay = 1 * time.Second
		maxDelay  = 15 * time.Second
	)
	if d < baseDelay {
		return baseDelay
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// runPolling: устойчивый long polling с backoff, выходит по отмене ctx.
func runPolling(ctx context.Context, bot updatesGetter, handle func(tgbotapi.Update), log *zap.SugaredLogger) {
	offset := 0
	for {
		if ctx.Err() != nil {
			log.Infow("polling: context cancelled")
			return
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30 // long polling timeout (sec)

		updates, err := bot.GetUpdates(u)
		if err != nil {
			d := clampDelay(retryDelayFromError(err))
			log.Warnw("polling error", "err", err, "retry_in", d)
			if !sleep(ctx, d) {
				return
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			handle(upd)
		}

		if len(updates) == 0 && !sleep(ctx, 200*time.Millisecond) {
			return
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ---------------- Helpers -----------------

func shortHash(s string) string {
	// лёгкий хэш для пути вебхука (не крипто, но стабильно для токена)
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
