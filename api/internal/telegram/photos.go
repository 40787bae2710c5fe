package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gpt-proxy/api/internal/content"
)

const (
	defaultDebounce = 1200 * time.Millisecond

	defaultPhotoPrompt = "Опиши, что изображено на картинках."
)

// photoBatch копит фото одного альбома (или подряд присланные фото чата) до срабатывания таймера.
type photoBatch struct {
	chatID int64

	mu      sync.Mutex
	images  []content.ImageInput
	caption string
	timer   *time.Timer
	done    bool // уже отправлен, новые фото идут в следующий batch
}

func batchKey(msg *tgbotapi.Message) string {
	if msg.MediaGroupID != "" {
		return "grp:" + msg.MediaGroupID
	}
	return fmt.Sprintf("chat:%d", msg.Chat.ID)
}

func (r *Router) acceptPhoto(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	// последний размер: самый большой
	ph := msg.Photo[len(msg.Photo)-1]
	if ph.FileSize > content.MaxRequestBytes {
		r.send(cid, "Фото слишком большое (больше 32 МиБ).")
		return
	}
	data, err := r.fetchFile(ctx, ph.FileID)
	if err != nil {
		r.SendError(cid, err)
		return
	}

	key := batchKey(msg)
	var b *photoBatch
	for {
		bi, _ := r.batches.LoadOrStore(key, &photoBatch{chatID: cid})
		b = bi.(*photoBatch)
		b.mu.Lock()
		if !b.done {
			break
		}
		b.mu.Unlock()
	}
	b.images = append(b.images, content.ImageInput{ImageB64: base64.StdEncoding.EncodeToString(data)})
	if c := strings.TrimSpace(msg.Caption); c != "" && b.caption == "" {
		b.caption = c
	}
	first := len(b.images) == 1
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(r.debounce(), func() {
		r.processBatch(context.WithoutCancel(ctx), key, b)
	})
	b.mu.Unlock()

	if first {
		r.send(cid, "Фото принято. Если их несколько — пришлите альбомом, отвечу на все сразу.")
	}
}

// processBatch отправляет b. Таймер, сработавший после отправки, ничего не делает,
// а новый batch под тем же ключом не трогает.
func (r *Router) processBatch(ctx context.Context, key string, b *photoBatch) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.done = true
	r.batches.CompareAndDelete(key, b)
	images := append([]content.ImageInput(nil), b.images...)
	text := b.caption
	b.mu.Unlock()

	if len(images) == 0 {
		return
	}
	if text == "" {
		text = defaultPhotoPrompt
	}
	r.infer(ctx, b.chatID, content.InferenceRequest{Text: text, Images: images})
}

func (r *Router) debounce() time.Duration {
	if r.Debounce > 0 {
		return r.Debounce
	}
	return defaultDebounce
}
