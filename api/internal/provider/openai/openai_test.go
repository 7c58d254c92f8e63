package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-proxy/api/internal/provider"
)

func newTestEngine(t *testing.T, h http.HandlerFunc) *Engine {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New("sk-test", "", "").WithBaseURL(srv.URL).WithHTTPClient(srv.Client())
}

func TestGenerateTextDefaults(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultModel, body.Model)
		assert.Equal(t, 2000, body.MaxTokens)
		assert.InDelta(t, 0.7, body.Temperature, 1e-9)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","model":"gpt-4-turbo","choices":[{"message":{"role":"assistant","content":"Ответ"}}],"usage":{"prompt_tokens":3,"completion_tokens":5,"total_tokens":8}}`))
	})

	res, err := e.GenerateText(context.Background(), provider.TextRequest{Prompt: "Вопрос", SystemPrompt: "sys"})
	require.NoError(t, err)
	assert.Equal(t, "Ответ", res.Text)
	assert.Equal(t, "chatcmpl-1", res.ID)
	require.NotNil(t, res.Usage)
	assert.Equal(t, 8, res.Usage.TotalTokens)
}

func TestGenerateTextProviderError(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key"}}`))
	})

	_, err := e.GenerateText(context.Background(), provider.TextRequest{Prompt: "x"})
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.Equal(t, "Incorrect API key", ErrorMessage(pe.Body))
}

func TestGenerateImage(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultImageModel, body["model"])
		assert.Equal(t, "1792x1024", body["size"])
		assert.Equal(t, "vivid", body["style"])
		assert.Equal(t, "url", body["response_format"])
		_, _ = w.Write([]byte(`{"created":1700000000,"data":[{"url":"https://img/1.png"}]}`))
	})

	res, err := e.GenerateImage(context.Background(), provider.ImageRequest{Prompt: "cat", Size: "1792x1024", Style: "vivid"})
	require.NoError(t, err)
	assert.Equal(t, "https://img/1.png", res.URL)
	assert.Equal(t, "1700000000", res.ID)
}

func TestMissingKey(t *testing.T) {
	_, err := New("", "", "").GenerateImage(context.Background(), provider.ImageRequest{Prompt: "x"})
	var ce *provider.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestErrorMessageFallback(t *testing.T) {
	assert.Equal(t, "Неизвестная ошибка", ErrorMessage("not json"))
}
