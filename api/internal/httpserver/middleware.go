package httpserver

import (
	"encoding/json"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"gpt-proxy/api/internal/metrics"
	"gpt-proxy/api/internal/reqctx"
)

const HeaderRequestID = "X-Request-ID"

// Chain оборачивает h так, что первый middleware оказывается внешним.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequestID берёт X-Request-ID клиента или генерирует новый и кладёт его в контекст.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = reqctx.NewID()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(reqctx.With(r.Context(), id)))
	})
}

// Recover превращает панику хендлера в 500 с JSON-ошибкой.
func Recover(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Errorw("panic in handler",
					"request_id", reqctx.ID(r.Context()),
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal error"})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// AccessLog пишет строку на запрос и обновляет HTTP-метрики.
// Метка endpoint берётся из known, чтобы произвольные пути не раздували кардинальность.
func AccessLog(log *zap.SugaredLogger, m *metrics.Metrics, known ...string) func(http.Handler) http.Handler {
	routes := make(map[string]struct{}, len(known))
	for _, p := range known {
		routes[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				status := rec.status
				if status == 0 {
					status = http.StatusOK
				}
				d := time.Since(start)
				endpoint := "other"
				if _, ok := routes[r.URL.Path]; ok {
					endpoint = r.URL.Path
				}
				m.ObserveHTTP(endpoint, status, d)
				log.Infow("http",
					"request_id", reqctx.ID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", rec.bytes,
					"duration", d)
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
