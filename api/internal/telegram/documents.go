package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gpt-proxy/api/internal/content"
	"gpt-proxy/api/internal/util"
)

func isPDF(doc *tgbotapi.Document) bool {
	switch util.MediaType(doc.MimeType) {
	case "application/pdf", "application/x-pdf":
		return true
	}
	return strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf")
}

// handleDocument: PDF уходит на суммаризацию, остальные документы отклоняются.
func (r *Router) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	doc := msg.Document
	if !isPDF(doc) {
		r.send(cid, "Поддерживаются только PDF-документы.")
		return
	}
	if doc.FileSize > content.MaxRequestBytes {
		r.send(cid, "Файл слишком большой (больше 32 МиБ).")
		return
	}

	r.send(cid, "PDF принят, читаю…")
	data, err := r.fetchFile(ctx, doc.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()
	out, err := r.Service.SummarizePDF(ctx, endpoint, data, r.engineFor(cid))
	if err != nil {
		r.SendError(cid, err)
		return
	}
	r.SendResult(cid, out.Text)
}
