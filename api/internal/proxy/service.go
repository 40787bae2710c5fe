// Package proxy is the request pipeline shared by the HTTP API and the
// Telegram bot: validate input, assemble content, call the completion engine.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"gpt-proxy/api/internal/content"
	"gpt-proxy/api/internal/llm"
	"gpt-proxy/api/internal/metrics"
	"gpt-proxy/api/internal/pdftext"
	"gpt-proxy/api/internal/reqctx"
	"gpt-proxy/api/internal/store"
)

var (
	ErrNotConfigured = errors.New("api key is not configured")
	ErrNoText        = errors.New("no extractable text in PDF")
	ErrProvider      = errors.New("inference error")
)

const summaryPrompt = "Summarize the following document in one paragraph. " +
	"Answer in the language of the document.\n\n"

// Auditor пишет метаданные вызовов (store.InferenceRepo).
type Auditor interface {
	Insert(ctx context.Context, rec store.Record) error
}

// Counter: опциональная статистика аудита (store.InferenceRepo).
type Counter interface {
	CountSince(ctx context.Context, since time.Time, status string) (int64, error)
}

type Service struct {
	Engines *llm.Engines
	Audit   Auditor // nil: аудит выключен
	Metrics *metrics.Metrics
	Log     *zap.SugaredLogger
}

type Output struct {
	Text   string
	Engine string
	Model  string
}

// Infer validates the images, assembles the content and calls the engine.
// Nothing reaches the network unless the credential is present and every
// image passed validation.
func (s *Service) Infer(ctx context.Context, endpoint string, req content.InferenceRequest) (Output, error) {
	start := time.Now()
	rec := store.Record{Endpoint: endpoint, PromptChars: utf8.RuneCountInString(req.Text)}

	eng, err := s.engine(req.LLMName, &rec)
	if err != nil {
		s.finish(ctx, rec, start, err)
		return Output{}, err
	}

	res, err := content.Build(req.Text, req.Images)
	if err != nil {
		s.finish(ctx, rec, start, err)
		return Output{}, err
	}
	rec.ImageCount, rec.ImageBytes = res.Images, res.TotalBytes
	s.Metrics.ObserveImageBytes(res.TotalBytes)

	return s.complete(ctx, eng, res.Blocks, rec, start)
}

// SummarizePDF extracts the document text and asks for a one-paragraph summary.
func (s *Service) SummarizePDF(ctx context.Context, endpoint string, data []byte, llmName string) (Output, error) {
	start := time.Now()
	rec := store.Record{Endpoint: endpoint}

	eng, err := s.engine(llmName, &rec)
	if err != nil {
		s.finish(ctx, rec, start, err)
		return Output{}, err
	}

	text := pdftext.Extract(data)
	chars := utf8.RuneCountInString(text)
	s.Metrics.ObservePDFChars(chars)
	if text == "" {
		s.finish(ctx, rec, start, ErrNoText)
		return Output{}, ErrNoText
	}
	rec.PromptChars = chars

	blocks := []content.Block{content.TextBlock(summaryPrompt + text)}
	return s.complete(ctx, eng, blocks, rec, start)
}

// CallsSince returns how many calls with the given status ("" for any) were
// audited after since. ok is false when the audit store cannot answer.
func (s *Service) CallsSince(ctx context.Context, since time.Time, status string) (n int64, ok bool) {
	c, isCounter := s.Audit.(Counter)
	if !isCounter {
		return 0, false
	}
	n, err := c.CountSince(ctx, since, status)
	if err != nil {
		s.Log.Warnw("audit count failed", "err", err)
		return 0, false
	}
	return n, true
}

func (s *Service) engine(llmName string, rec *store.Record) (llm.Engine, error) {
	eng, err := s.Engines.GetEngine(llmName)
	if err != nil {
		return nil, err
	}
	rec.Engine, rec.Model = eng.Name(), eng.GetModel()
	if !eng.HasKey() {
		return nil, fmt.Errorf("%s: %w", eng.Name(), ErrNotConfigured)
	}
	return eng, nil
}

func (s *Service) complete(ctx context.Context, eng llm.Engine, blocks []content.Block, rec store.Record, start time.Time) (Output, error) {
	callStart := time.Now()
	text, err := eng.Complete(ctx, blocks)
	if err != nil {
		s.Metrics.ObserveCompletion(eng.Name(), eng.GetModel(), "error", time.Since(callStart))
		s.Log.Errorw("completion failed",
			"request_id", reqctx.ID(ctx), "engine", eng.Name(), "model", eng.GetModel(), "err", err)
		if errors.Is(err, llm.ErrNoAPIKey) {
			err = fmt.Errorf("%s: %w", eng.Name(), ErrNotConfigured)
		} else {
			err = fmt.Errorf("%w: %s", ErrProvider, shortReason(err))
		}
		s.finish(ctx, rec, start, err)
		return Output{}, err
	}
	s.Metrics.ObserveCompletion(eng.Name(), eng.GetModel(), "success", time.Since(callStart))

	rec.OutputChars = utf8.RuneCountInString(text)
	s.finish(ctx, rec, start, nil)
	return Output{Text: text, Engine: eng.Name(), Model: eng.GetModel()}, nil
}

// finish пишет аудит; его ошибки на ответ не влияют.
func (s *Service) finish(ctx context.Context, rec store.Record, start time.Time, err error) {
	rec.RequestID = reqctx.ID(ctx)
	rec.Status = statusOf(err)
	rec.Duration = time.Since(start)
	if s.Audit == nil {
		return
	}
	if aerr := s.Audit.Insert(context.WithoutCancel(ctx), rec); aerr != nil {
		s.Log.Warnw("audit insert failed", "request_id", rec.RequestID, "err", aerr)
	}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotConfigured):
		return "config_error"
	case errors.Is(err, ErrProvider):
		return "provider_error"
	default:
		return "client_error"
	}
}

// shortReason отдаёт клиенту только класс сбоя, без тела ответа провайдера.
func shortReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "upstream timeout"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	default:
		return "upstream request failed"
	}
}
