package telegram

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gpt-proxy/api/internal/content"
	"gpt-proxy/api/internal/llm"
	"gpt-proxy/api/internal/proxy"
	"gpt-proxy/api/internal/util"
)

// maxMessageRunes: с запасом до лимита Telegram в 4096 символов.
const maxMessageRunes = 3900

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil && r.Log != nil {
		r.Log.Warnw("telegram send failed", "chat_id", chatID, "err", err)
	}
}

func (r *Router) SendResult(chatID int64, text string) {
	if text == "" {
		text = "(пустой ответ)"
	}
	if s, cut := util.TruncateRunes(text, maxMessageRunes); cut {
		text = s + "…"
	}
	r.send(chatID, text)
}

func (r *Router) SendError(chatID int64, err error) {
	if r.Log != nil {
		r.Log.Infow("telegram request failed", "chat_id", chatID, "err", err)
	}
	r.send(chatID, "⚠️ "+userMessage(err))
}

// userMessage переводит ошибку пайплайна в текст для пользователя; детали остаются в логах.
func userMessage(err error) string {
	switch {
	case errors.Is(err, content.ErrInvalidBase64):
		return "Не смог прочитать изображение."
	case errors.Is(err, content.ErrPayloadTooLarge):
		return "Слишком много данных (больше 32 МиБ)."
	case errors.Is(err, proxy.ErrNoText):
		return "В PDF не нашлось текста (возможно, это скан)."
	case errors.Is(err, llm.ErrUnknownEngine):
		return "Выбран неизвестный движок, используйте /engine."
	case errors.Is(err, proxy.ErrNotConfigured):
		return "На сервере не задан API-ключ для выбранного движка."
	case errors.Is(err, proxy.ErrProvider):
		return "LLM не ответила, попробуйте позже."
	default:
		return "Что-то пошло не так, попробуйте ещё раз."
	}
}
