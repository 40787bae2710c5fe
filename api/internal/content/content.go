// Package content собирает мультимодальный вход для completion API:
// текст запроса плюс картинки в виде data URL.
package content

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"gpt-proxy/api/internal/util"
)

// MaxRequestBytes: потолок суммарного размера декодированных картинок на запрос.
const MaxRequestBytes = 32 * 1024 * 1024

var (
	ErrInvalidBase64   = errors.New("image is not valid base64")
	ErrPayloadTooLarge = errors.New("images exceed 32 MiB in total")
)

type BlockType string

const (
	BlockText  BlockType = "input_text"
	BlockImage BlockType = "input_image"
)

// Block: один элемент content[] в формате OpenAI Responses API.
type Block struct {
	Type     BlockType `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
}

func TextBlock(text string) Block { return Block{Type: BlockText, Text: text} }

func ImageBlock(mime, b64 string) Block {
	return Block{Type: BlockImage, ImageURL: util.MakeDataURL(mime, b64)}
}

type ImageInput struct {
	ImageB64 string `json:"image_b64"`
	Mime     string `json:"mime,omitempty"`
}

type InferenceRequest struct {
	Text    string       `json:"text"`
	Images  []ImageInput `json:"images,omitempty"`
	LLMName string       `json:"llm_name,omitempty"`
}

type Result struct {
	Blocks     []Block
	TotalBytes int // сумма декодированных байт всех картинок
	Images     int
}

// Build returns the text block followed by one image block per non-empty
// image, in input order. Images are validated one by one and the running
// decoded size is checked after each, so the first failing entry wins.
func Build(text string, images []ImageInput) (Result, error) {
	res := Result{Blocks: make([]Block, 0, 1+len(images))}
	res.Blocks = append(res.Blocks, TextBlock(text))

	for i, img := range images {
		if strings.TrimSpace(img.ImageB64) == "" {
			continue
		}
		raw, err := DecodeStrict(img.ImageB64)
		if err != nil {
			return Result{}, fmt.Errorf("images[%d]: %w", i, err)
		}

		res.TotalBytes += len(raw)
		if res.TotalBytes > MaxRequestBytes {
			return Result{}, fmt.Errorf("images[%d]: %w", i, ErrPayloadTooLarge)
		}

		mime := img.Mime
		if mime == "" {
			mime = util.SniffImageMIME(raw)
		}
		res.Blocks = append(res.Blocks, ImageBlock(mime, img.ImageB64))
		res.Images++
	}
	return res, nil
}

// DecodeStrict декодирует стандартный base64 с паддингом. В отличие от
// base64.StdEncoding, переводы строк тоже считаются ошибкой.
func DecodeStrict(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, ErrInvalidBase64
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidBase64
	}
	return b, nil
}
