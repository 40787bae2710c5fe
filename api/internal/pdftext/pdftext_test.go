package pdftext

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpt-proxy/api/internal/pdftext/pdftest"
)

func TestAcceptContentType(t *testing.T) {
	for _, ct := range []string{"application/pdf", "APPLICATION/PDF", "application/x-pdf", "application/octet-stream", "application/pdf; name=a.pdf"} {
		assert.True(t, AcceptContentType(ct), ct)
	}
	for _, ct := range []string{"", "text/plain", "image/png", "application/json"} {
		assert.False(t, AcceptContentType(ct), ct)
	}
}

func TestExtract_JoinsPages(t *testing.T) {
	doc := pdftest.Build("First page", "", "Second (page)")
	assert.Equal(t, "First page\n\nSecond (page)", Extract(doc))
}

func TestExtract_NoText(t *testing.T) {
	assert.Empty(t, Extract(pdftest.Build("", "")))
}

func TestExtract_Garbage(t *testing.T) {
	assert.Empty(t, Extract([]byte("definitely not a pdf")))
	assert.Empty(t, Extract(nil))

	doc := pdftest.Build("Some text")
	assert.Empty(t, Extract(doc[:len(doc)/2]))
}

func TestExtract_Truncates(t *testing.T) {
	long := strings.Repeat("a", MaxChars+500)
	got := Extract(pdftest.Build(long))
	require.True(t, strings.HasSuffix(got, TruncationNotice))
	assert.Equal(t, strings.Repeat("a", MaxChars), strings.TrimSuffix(got, TruncationNotice))
}

func TestFinalize(t *testing.T) {
	t.Run("skips blank pages and trims", func(t *testing.T) {
		got := Finalize([]string{"  one", "", " \n ", "two  "})
		assert.Equal(t, "one\n\ntwo", got)
	})

	t.Run("exactly at limit", func(t *testing.T) {
		s := strings.Repeat("b", MaxChars)
		assert.Equal(t, s, Finalize([]string{s}))
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		s := strings.Repeat("ж", MaxChars+1)
		got := Finalize([]string{s})
		body := strings.TrimSuffix(got, TruncationNotice)
		assert.Equal(t, MaxChars, utf8.RuneCountInString(body))
		assert.True(t, strings.HasSuffix(got, TruncationNotice))
	})

	t.Run("separator counts toward limit", func(t *testing.T) {
		a := strings.Repeat("x", MaxChars-1)
		got := Finalize([]string{a, "yy"})
		assert.Equal(t, a+"\n"+TruncationNotice, got)
	})
}
