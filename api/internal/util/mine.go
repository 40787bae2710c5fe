package util

import (
	"net/http"
	"strings"
)

const OctetStream = "application/octet-stream"

// SniffImageMIME угадывает MIME картинки по сигнатуре. Всё, что не похоже на
// изображение, возвращается как application/octet-stream.
func SniffImageMIME(b []byte) string {
	// TIFF: II*\0 | MM\0*
	if len(b) >= 4 &&
		((b[0] == 'I' && b[1] == 'I' && b[2] == 0x2A && b[3] == 0x00) ||
			(b[0] == 'M' && b[1] == 'M' && b[2] == 0x00 && b[3] == 0x2A)) {
		return "image/tiff"
	}
	if len(b) == 0 {
		return OctetStream
	}
	// jpeg | png | gif | webp | bmp | x-icon
	if m := http.DetectContentType(b); strings.HasPrefix(m, "image/") {
		return m
	}
	return OctetStream
}

func MakeDataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// ParseDataURL разбирает data:<mime>;base64,<payload>.
func ParseDataURL(s string) (mime, payload string, ok bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", "", false
	}
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return "", "", false
	}
	meta := s[len("data:"):idx]
	if !strings.HasSuffix(meta, ";base64") {
		return "", "", false
	}
	return strings.TrimSuffix(meta, ";base64"), s[idx+1:], true
}

// MediaType отрезает параметры (`; charset=...`) и приводит к нижнему регистру.
func MediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
