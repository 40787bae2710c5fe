package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"gpt-proxy/api/internal/content"
	"gpt-proxy/api/internal/llm"
	"gpt-proxy/api/internal/proxy"
	"gpt-proxy/api/internal/reqctx"
)

type Handle struct {
	svc       *proxy.Service
	staticDir string
	timeout   time.Duration
	log       *zap.SugaredLogger
}

func New(svc *proxy.Service, staticDir string, timeout time.Duration, log *zap.SugaredLogger) *Handle {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Handle{
		svc:       svc,
		staticDir: staticDir,
		timeout:   timeout,
		log:       log,
	}
}

// Routes регистрирует все ручки API на mux.
func (h *Handle) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.Index)
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/infer", h.Infer)
	mux.HandleFunc("/summarize_pdf", h.SummarizePDF)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// fail переводит ошибку пайплайна в HTTP-статус и короткое сообщение.
func (h *Handle) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.log.Errorw("request failed", "request_id", reqctx.ID(r.Context()), "path", r.URL.Path, "err", err)
	}
	writeError(w, code, msg)
}

func statusFor(err error) (int, string) {
	var mbe *http.MaxBytesError
	switch {
	case errors.Is(err, content.ErrInvalidBase64):
		return http.StatusBadRequest, "one of the images is not valid base64"
	case errors.Is(err, content.ErrPayloadTooLarge), errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge, "too much data (over 32 MiB in total)"
	case errors.Is(err, proxy.ErrNoText):
		return http.StatusBadRequest, "could not extract text from the PDF"
	case errors.Is(err, llm.ErrUnknownEngine):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, proxy.ErrNotConfigured):
		return http.StatusInternalServerError, "API key is not configured on the server"
	case errors.Is(err, proxy.ErrProvider):
		return http.StatusInternalServerError, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// withDeadline: X-Request-Timeout или ?timeoutSec= (секунды), иначе h.timeout.
func (h *Handle) withDeadline(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := h.timeout
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(r.Context(), deadline)
}
