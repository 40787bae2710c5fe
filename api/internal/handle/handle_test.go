package handle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gpt-proxy/api/internal/content"
	"gpt-proxy/api/internal/llm"
	"gpt-proxy/api/internal/metrics"
	"gpt-proxy/api/internal/pdftext/pdftest"
	"gpt-proxy/api/internal/proxy"
)

type fakeEngine struct {
	key      bool
	out      string
	err      error
	calls    int
	blocks   []content.Block
	deadline time.Duration
}

func (f *fakeEngine) Name() string     { return "gpt" }
func (f *fakeEngine) GetModel() string { return "gpt-4.1-mini" }
func (f *fakeEngine) HasKey() bool     { return f.key }
func (f *fakeEngine) Complete(ctx context.Context, blocks []content.Block) (string, error) {
	f.calls++
	f.blocks = blocks
	if d, ok := ctx.Deadline(); ok {
		f.deadline = time.Until(d)
	}
	return f.out, f.err
}

func newMux(t *testing.T, eng *fakeEngine, staticDir string) *http.ServeMux {
	t.Helper()
	svc := &proxy.Service{
		Engines: &llm.Engines{OpenAI: eng, Default: "gpt"},
		Metrics: metrics.New("test"),
		Log:     zap.NewNop().Sugar(),
	}
	mux := http.NewServeMux()
	New(svc, staticDir, 0, zap.NewNop().Sugar()).Routes(mux)
	return mux
}

func do(mux http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func inferReq(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/infer", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestIndex(t *testing.T) {
	dir := t.TempDir()
	mux := newMux(t, &fakeEngine{}, dir)

	w := do(mux, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>proxy</h1>"), 0o644))
	w = do(mux, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>proxy</h1>")

	w = do(mux, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(mux, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealth_NoCredential(t *testing.T) {
	mux := newMux(t, &fakeEngine{key: false}, t.TempDir())

	w := do(mux, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	m := decode(t, w)
	assert.Equal(t, "ok", m["status"])
	assert.Equal(t, "gpt-4.1-mini", m["model"])
	assert.Equal(t, false, m["has_openai_key"])
	assert.Equal(t, false, m["index_exists"])
}

func TestHealth_WithCredential(t *testing.T) {
	mux := newMux(t, &fakeEngine{key: true}, t.TempDir())
	m := decode(t, do(mux, httptest.NewRequest(http.MethodGet, "/health", nil)))
	assert.Equal(t, true, m["has_openai_key"])
	assert.Equal(t, false, m["has_gemini_key"])
}

func TestHealthz(t *testing.T) {
	w := do(newMux(t, &fakeEngine{}, ""), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestInfer_OK(t *testing.T) {
	eng := &fakeEngine{key: true, out: "two cats"}
	mux := newMux(t, eng, "")

	img := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F'})
	w := do(mux, inferReq(`{"text":"how many cats?","images":[{"image_b64":"`+img+`"}]}`))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "two cats", decode(t, w)["output"])
	require.Len(t, eng.blocks, 2)
	assert.Equal(t, "data:image/jpeg;base64,"+img, eng.blocks[1].ImageURL)
}

func TestInfer_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  bool
		body string
		code int
	}{
		{"bad json", true, `{"text":`, http.StatusBadRequest},
		{"missing text", true, `{"images":[]}`, http.StatusBadRequest},
		{"null text", true, `{"text":null}`, http.StatusBadRequest},
		{"trailing data", true, `{"text":"x"} {"text":"y"}`, http.StatusBadRequest},
		{"invalid base64", true, `{"text":"x","images":[{"image_b64":"abc%"}]}`, http.StatusBadRequest},
		{"unknown engine", true, `{"text":"x","llm_name":"llama"}`, http.StatusBadRequest},
		{"missing key", false, `{"text":"x"}`, http.StatusInternalServerError},
		{"missing key wins over bad image", false, `{"text":"x","images":[{"image_b64":"%"}]}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{key: tt.key, out: "x"}
			w := do(newMux(t, eng, ""), inferReq(tt.body))
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["error"])
			assert.Zero(t, eng.calls)
		})
	}
}

func TestInfer_EmptyTextAllowed(t *testing.T) {
	eng := &fakeEngine{key: true, out: "ok"}
	w := do(newMux(t, eng, ""), inferReq(`{"text":""}  `))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, eng.calls)
}

func TestInfer_EmptyModelOutput(t *testing.T) {
	eng := &fakeEngine{key: true, out: ""}
	w := do(newMux(t, eng, ""), inferReq(`{"text":"x"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"output":""}`, w.Body.String())
}

func TestInfer_TooLarge(t *testing.T) {
	eng := &fakeEngine{key: true, out: "x"}
	half := base64.StdEncoding.EncodeToString(make([]byte, content.MaxRequestBytes/2+1))
	body := `{"text":"x","images":[{"image_b64":"` + half + `"},{"image_b64":"` + half + `"}]}`

	w := do(newMux(t, eng, ""), inferReq(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Zero(t, eng.calls)
}

func TestInfer_ProviderError(t *testing.T) {
	eng := &fakeEngine{key: true, err: assert.AnError}
	w := do(newMux(t, eng, ""), inferReq(`{"text":"x"}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	msg, _ := decode(t, w)["error"].(string)
	assert.True(t, strings.HasPrefix(msg, "inference error"))
	assert.NotContains(t, msg, assert.AnError.Error())
}

func TestInfer_MethodNotAllowed(t *testing.T) {
	w := do(newMux(t, &fakeEngine{}, ""), httptest.NewRequest(http.MethodGet, "/infer", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestInfer_RequestTimeoutHeader(t *testing.T) {
	eng := &fakeEngine{key: true, out: "ok"}
	r := inferReq(`{"text":"x"}`)
	r.Header.Set("X-Request-Timeout", "5")

	w := do(newMux(t, eng, ""), r)
	require.Equal(t, http.StatusOK, w.Code)
	assert.LessOrEqual(t, eng.deadline, 5*time.Second)
	assert.Greater(t, eng.deadline, 3*time.Second)
}

func uploadReq(t *testing.T, field, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="doc.pdf"`)
		h.Set("Content-Type", contentType)
		pw, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/summarize_pdf", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestSummarizePDF_OK(t *testing.T) {
	eng := &fakeEngine{key: true, out: "It is about apples."}
	for _, ct := range []string{"application/pdf", "application/octet-stream"} {
		w := do(newMux(t, eng, ""), uploadReq(t, "file", ct, pdftest.Build("Apples are red.", "Some are green.")))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "It is about apples.", decode(t, w)["summary"])
		assert.Contains(t, eng.blocks[0].Text, "Apples are red.\n\nSome are green.")
	}
}

func TestSummarizePDF_Errors(t *testing.T) {
	doc := pdftest.Build("text")
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
		code int
	}{
		{"wrong content type", func(t *testing.T) *http.Request {
			return uploadReq(t, "file", "text/plain", doc)
		}, http.StatusBadRequest},
		{"missing file", func(t *testing.T) *http.Request {
			return uploadReq(t, "", "", nil)
		}, http.StatusBadRequest},
		{"other field name", func(t *testing.T) *http.Request {
			return uploadReq(t, "upload", "application/pdf", doc)
		}, http.StatusBadRequest},
		{"not multipart", func(t *testing.T) *http.Request {
			return httptest.NewRequest(http.MethodPost, "/summarize_pdf", strings.NewReader("{}"))
		}, http.StatusBadRequest},
		{"scanned pdf", func(t *testing.T) *http.Request {
			return uploadReq(t, "file", "application/pdf", pdftest.Build("", ""))
		}, http.StatusBadRequest},
		{"too large", func(t *testing.T) *http.Request {
			return uploadReq(t, "file", "application/pdf", make([]byte, content.MaxRequestBytes+10))
		}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{key: true, out: "x"}
			w := do(newMux(t, eng, ""), tt.req(t))
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Zero(t, eng.calls)
		})
	}
}

func TestSummarizePDF_ProviderError(t *testing.T) {
	eng := &fakeEngine{key: true, err: assert.AnError}
	w := do(newMux(t, eng, ""), uploadReq(t, "file", "application/pdf", pdftest.Build("hello")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
