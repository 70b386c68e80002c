package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsift/docsift/internal/common"
	"github.com/docsift/docsift/internal/llm"
)

func TestGenerateContentRequestShape(t *testing.T) {
	var (
		capturedPath string
		capturedKey  string
		capturedBody map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedKey = r.URL.Query().Get("key")
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`))
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "secret-key", BaseURL: server.URL, Model: "gemini-1.5-flash"}, nil)
	raw, err := c.GenerateContent(context.Background(), "the prompt",
		llm.ImagePayload{MIMEType: "image/jpeg", Data: "YWJj"})
	require.NoError(t, err)
	assert.Contains(t, string(raw), "candidates")

	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", capturedPath)
	assert.Equal(t, "secret-key", capturedKey)

	contents, ok := capturedBody["contents"].([]any)
	require.True(t, ok, "body must carry a contents array")
	require.Len(t, contents, 1)
	parts, ok := contents[0].(map[string]any)["parts"].([]any)
	require.True(t, ok, "content must carry a parts array")
	require.Len(t, parts, 2, "exactly two parts: text then inline data")

	text, _ := parts[0].(map[string]any)["text"].(string)
	assert.Equal(t, "the prompt", text)

	inline, ok := parts[1].(map[string]any)["inline_data"].(map[string]any)
	require.True(t, ok, "second part must be inline_data")
	assert.Equal(t, "image/jpeg", inline["mime_type"])
	assert.Equal(t, "YWJj", inline["data"])
}

func TestGenerateContentNon2xxIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: server.URL}, nil)
	_, err := c.GenerateContent(context.Background(), "p", llm.ImagePayload{MIMEType: "image/jpeg", Data: "x"})
	require.Error(t, err)
	assert.Equal(t, common.CodeTransportError, common.CodeOf(err))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerateContentUnreachableIsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	c := NewClient(Config{APIKey: "k", BaseURL: server.URL}, nil)
	_, err := c.GenerateContent(context.Background(), "p", llm.ImagePayload{MIMEType: "image/jpeg", Data: "x"})
	require.Error(t, err)
	assert.Equal(t, common.CodeTransportError, common.CodeOf(err))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{APIKey: "k", BaseURL: "https://example.test/"}, nil)
	assert.Equal(t, "https://example.test", c.cfg.BaseURL)
	assert.Equal(t, "gemini-1.5-flash", c.cfg.Model)
	assert.False(t, strings.HasSuffix(c.cfg.BaseURL, "/"))
	assert.NotNil(t, c.http)
}
