package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"gpt-proxy/api/internal/content"
	"gpt-proxy/api/internal/llm"
	"gpt-proxy/api/internal/util"
)

type Engine struct {
	APIKey string
	Model  string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }
func (e *Engine) HasKey() bool     { return e.APIKey != "" }

func (e *Engine) Complete(ctx context.Context, blocks []content.Block) (string, error) {
	if !e.HasKey() {
		return "", fmt.Errorf("GEMINI_API_KEY: %w", llm.ErrNoAPIKey)
	}
	parts, err := toParts(blocks)
	if err != nil {
		return "", err
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return "", errors.New("gemini: model is nil")
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	txt := strings.TrimSpace(firstText(resp))
	if txt == "" {
		return "", errors.New("gemini: empty response")
	}
	return txt, nil
}

// toParts переводит блоки Responses API в части genai: data URL
// раскрываются в Blob с исходным MIME.
func toParts(blocks []content.Block) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(blocks))
	for i, b := range blocks {
		switch b.Type {
		case content.BlockText:
			parts = append(parts, genai.Text(b.Text))
		case content.BlockImage:
			mime, payload, ok := util.ParseDataURL(b.ImageURL)
			if !ok {
				return nil, fmt.Errorf("gemini: block %d: not a base64 data url", i)
			}
			data, err := content.DecodeStrict(payload)
			if err != nil {
				return nil, fmt.Errorf("gemini: block %d: %w", i, err)
			}
			parts = append(parts, &genai.Blob{MIMEType: mime, Data: data})
		default:
			return nil, fmt.Errorf("gemini: block %d: unsupported type %q", i, b.Type)
		}
	}
	return parts, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
