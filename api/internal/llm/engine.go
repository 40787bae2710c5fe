package llm

import (
	"context"
	"errors"
	"strings"

	"gpt-proxy/api/internal/content"
)

var (
	ErrNoAPIKey      = errors.New("api key is not configured")
	ErrUnknownEngine = errors.New("unknown llm_name; use 'gpt' or 'gemini'")
)

// Engine: клиент одного completion API.
type Engine interface {
	Name() string
	GetModel() string
	// HasKey сообщает, задан ли ключ; без него Complete сразу вернёт ErrNoAPIKey.
	HasKey() bool
	Complete(ctx context.Context, blocks []content.Block) (string, error)
}

type Engines struct {
	OpenAI Engine
	Gemini Engine

	// Default: имя движка для запросов без llm_name.
	Default string
}

func (e *Engines) GetEngine(llmName string) (Engine, error) {
	name := strings.ToLower(strings.TrimSpace(llmName))
	if name == "" {
		name = e.Default
	}
	var eng Engine
	switch name {
	case "gpt", "openai", "":
		eng = e.OpenAI
	case "gemini":
		eng = e.Gemini
	default:
		return nil, ErrUnknownEngine
	}
	if eng == nil {
		return nil, ErrUnknownEngine
	}
	return eng, nil
}
