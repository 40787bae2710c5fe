package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"gpt-proxy/api/internal/content"
	"gpt-proxy/api/internal/llm"
	"gpt-proxy/api/internal/proxy"
	"gpt-proxy/api/internal/reqctx"
)

const endpoint = "telegram"

// BotAPI: та часть *tgbotapi.BotAPI, которой пользуется Router.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot     BotAPI
	Service *proxy.Service
	Log     *zap.SugaredLogger

	// Timeout на один вызов сервиса; Debounce: сколько ждать остальные фото альбома.
	Timeout  time.Duration
	Debounce time.Duration

	batches    sync.Map // key -> *photoBatch
	chatEngine sync.Map // chatID -> llm_name
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}
	ctx = reqctx.With(ctx, reqctx.NewID())

	switch {
	case msg.IsCommand():
		r.handleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		r.acceptPhoto(ctx, msg)
	case msg.Document != nil:
		r.handleDocument(ctx, msg)
	case strings.TrimSpace(msg.Text) != "":
		r.handleText(ctx, msg)
	}
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start":
		r.send(cid, "Пришли текст, фото (можно альбомом, подпись станет вопросом) или PDF — отвечу через LLM.\n"+
			"Команды: /health, /engine")
	case "health":
		r.send(cid, r.healthText(ctx))
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	default:
		r.send(cid, "Неизвестная команда")
	}
}

func (r *Router) healthText(ctx context.Context) string {
	engs := r.Service.Engines
	var b strings.Builder
	b.WriteString("✅ OK")
	for _, e := range []llm.Engine{engs.OpenAI, engs.Gemini} {
		if e == nil {
			continue
		}
		mark := "нет ключа"
		if e.HasKey() {
			mark = "ключ есть"
		}
		b.WriteString("\n" + e.Name() + " (" + e.GetModel() + "): " + mark)
	}

	since := time.Now().Add(-24 * time.Hour)
	if total, ok := r.Service.CallsSince(ctx, since, ""); ok {
		failed, _ := r.Service.CallsSince(ctx, since, "provider_error")
		fmt.Fprintf(&b, "\nЗа сутки: %d запросов, ошибок LLM: %d", total, failed)
	}
	return b.String()
}

// handleEngineCommand: "/engine" показывает текущий движок, "/engine gpt|gemini" переключает его для чата.
func (r *Router) handleEngineCommand(chatID int64, args string) {
	name := strings.ToLower(strings.TrimSpace(args))
	if name == "" {
		cur := "?"
		if eng, err := r.Service.Engines.GetEngine(r.engineFor(chatID)); err == nil {
			cur = eng.Name() + " (" + eng.GetModel() + ")"
		}
		r.send(chatID, "Текущий движок: "+cur+"\nИспользование: /engine gpt | /engine gemini")
		return
	}
	eng, err := r.Service.Engines.GetEngine(name)
	if err != nil {
		r.send(chatID, "Неизвестный движок. Доступны: gpt | gemini")
		return
	}
	r.chatEngine.Store(chatID, eng.Name())
	msg := "✅ Движок: " + eng.Name() + " (" + eng.GetModel() + ")."
	if !eng.HasKey() {
		msg += "\n⚠️ Для него не задан API-ключ на сервере."
	}
	r.send(chatID, msg)
}

// engineFor возвращает llm_name, выбранный в чате, или "" (движок по умолчанию).
func (r *Router) engineFor(chatID int64) string {
	if v, ok := r.chatEngine.Load(chatID); ok {
		return v.(string)
	}
	return ""
}

func (r *Router) handleText(ctx context.Context, msg *tgbotapi.Message) {
	r.infer(ctx, msg.Chat.ID, content.InferenceRequest{Text: msg.Text})
}

func (r *Router) infer(ctx context.Context, chatID int64, req content.InferenceRequest) {
	req.LLMName = r.engineFor(chatID)
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	out, err := r.Service.Infer(ctx, endpoint, req)
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	r.SendResult(chatID, out.Text)
}

func (r *Router) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return 180 * time.Second
}
