package gpt

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpt-proxy/api/internal/content"
	"gpt-proxy/api/internal/llm"
)

func TestComplete_SendsBlocks(t *testing.T) {
	var got struct {
		Model string `json:"model"`
		Input []struct {
			Role    string          `json:"role"`
			Content []content.Block `json:"content"`
		} `json:"input"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(b, &got))
		_, _ = w.Write([]byte(`{"object":"response","output_text":"  a cat  "}`))
	}))
	defer srv.Close()

	e := New("sk-test", "gpt-4.1-mini", srv.URL+"/v1/")
	blocks := []content.Block{content.TextBlock("what?"), content.ImageBlock("image/png", "AAAA")}

	out, err := e.Complete(context.Background(), blocks)
	require.NoError(t, err)
	assert.Equal(t, "a cat", out)

	assert.Equal(t, "gpt-4.1-mini", got.Model)
	require.Len(t, got.Input, 1)
	assert.Equal(t, "user", got.Input[0].Role)
	assert.Equal(t, blocks, got.Input[0].Content)
}

func TestComplete_OutputArrayFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[
			{"type":"reasoning","content":[]},
			{"type":"message","content":[{"type":"output_text","text":"line one"},{"type":"refusal","text":"nope"},{"type":"output_text","text":"line two"}]}
		]}`))
	}))
	defer srv.Close()

	out, err := New("k", "m", srv.URL).Complete(context.Background(), []content.Block{content.TextBlock("x")})
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", out)
}

func TestComplete_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	_, err := New("k", "m", srv.URL).Complete(context.Background(), []content.Block{content.TextBlock("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestComplete_EmptyOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":[],"output_text":""}`))
	}))
	defer srv.Close()

	out, err := New("k", "m", srv.URL).Complete(context.Background(), []content.Block{content.TextBlock("x")})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestComplete_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	_, err := New("k", "m", srv.URL).Complete(context.Background(), []content.Block{content.TextBlock("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad body")
}

func TestComplete_NoKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	e := New("  ", "m", srv.URL)
	assert.False(t, e.HasKey())
	_, err := e.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, llm.ErrNoAPIKey)
	assert.False(t, called)
}

func TestNew_Defaults(t *testing.T) {
	e := New("k", " gpt-4.1-mini ", "")
	assert.Equal(t, DefaultBaseURL, e.BaseURL)
	assert.Equal(t, "gpt-4.1-mini", e.GetModel())
	assert.Equal(t, "gpt", e.Name())
}
