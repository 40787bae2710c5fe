// Package pdftext extracts plain text from uploaded PDF documents.
package pdftext

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ledongthuc/pdf"

	"gpt-proxy/api/internal/util"
)

const (
	// MaxChars: сколько символов текста уходит в модель.
	MaxChars = 120_000

	TruncationNotice = "\n\n[... text truncated ...]"
)

var errPanic = errors.New("pdf parser panicked")

var acceptedTypes = map[string]bool{
	"application/pdf":          true,
	"application/x-pdf":        true,
	"application/octet-stream": true,
}

// AcceptContentType reports whether a declared upload type may be parsed.
func AcceptContentType(ct string) bool {
	return acceptedTypes[util.MediaType(ct)]
}

// Extract returns the text of all pages joined by blank lines, trimmed and
// capped at MaxChars. An unreadable document yields "".
func Extract(data []byte) string {
	pages, err := readPages(data)
	if err != nil {
		return ""
	}
	return Finalize(pages)
}

// Finalize склеивает тексты страниц и применяет лимит MaxChars.
func Finalize(pages []string) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	text := strings.TrimSpace(strings.Join(parts, "\n\n"))
	if cut, truncated := util.TruncateRunes(text, MaxChars); truncated {
		return cut + TruncationNotice
	}
	return text
}

func readPages(data []byte) (pages []string, err error) {
	// парсер паникует на битых xref/потоках
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, errPanic
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		pages = append(pages, txt)
	}
	return pages, nil
}
