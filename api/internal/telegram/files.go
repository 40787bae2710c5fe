package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"gpt-proxy/api/internal/content"
	"gpt-proxy/api/internal/util"
)

var fileClient = &http.Client{Timeout: 60 * time.Second}

// fetchFile скачивает файл Telegram по file_id, не больше MaxRequestBytes.
func (r *Router) fetchFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := fileClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download status %d: %s", resp.StatusCode, util.TruncateBytes(b, 256))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, content.MaxRequestBytes+1))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if len(data) > content.MaxRequestBytes {
		return nil, content.ErrPayloadTooLarge
	}
	return data, nil
}
