// Package aiml is a client for the AIML API (Kling video, Flux images, chat).
package aiml

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/task"
)

const (
	DefaultBaseURL = "https://api.aimlapi.com"

	videoModel = "kling-ai/kling-v1.5/video/standard/text-to-video"
	imageModel = "flux/schnell"
	textModel  = "gpt-4o-mini"
)

var ErrNoImageURL = errors.New("no image URL in response")

type Engine struct {
	APIKey  string
	BaseURL string
	Model   string
	httpc   *http.Client
}

func New(key, baseURL string) *Engine {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Engine{
		APIKey:  key,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   textModel,
		httpc:   provider.NewHTTPClient(60 * time.Second),
	}
}

func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	e.httpc = c
	return e
}

func (e *Engine) Name() string     { return "aiml" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) call(ctx context.Context, method, op, path string, body any, ok ...int) ([]byte, error) {
	if e.APIKey == "" {
		return nil, &provider.ConfigError{Env: "AIMLAPI_KEY"}
	}
	req, err := provider.NewJSONRequest(ctx, method, e.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)
	raw, _, err := provider.Do(e.httpc, e.Name(), op, req, ok...)
	return raw, err
}

// StartVideo queues a 5 second 16:9 text-to-video job and returns its id.
func (e *Engine) StartVideo(ctx context.Context, prompt string) (string, error) {
	raw, err := e.call(ctx, http.MethodPost, "video", "/v2/generate/video/kling/generation", map[string]any{
		"model":        videoModel,
		"prompt":       prompt,
		"duration":     "5",
		"aspect_ratio": "16:9",
	}, http.StatusOK, http.StatusCreated, http.StatusAccepted)
	if err != nil {
		return "", err
	}
	id := firstString(raw, "task_id", "id")
	if id == "" {
		return "", fmt.Errorf("aiml video: no task_id in response: %s", raw)
	}
	return id, nil
}

func (e *Engine) VideoStatus(ctx context.Context, id string) (task.State, error) {
	raw, err := e.call(ctx, http.MethodGet, "video status", "/v2/generate/video/kling/"+url.PathEscape(id), nil, http.StatusOK)
	if err != nil {
		return task.State{}, err
	}
	st := task.State{ID: id, Status: task.ParseStatus(gjson.GetBytes(raw, "status").String())}
	switch st.Status {
	case task.StatusSucceeded:
		st.URL = firstString(raw, "output.video_url", "url")
		if st.URL == "" {
			return st, fmt.Errorf("aiml video status: no video URL in completed response: %s", raw)
		}
	case task.StatusFailed:
		st.Reason = reason(raw)
	}
	return st, nil
}

// StartImage queues a Flux image; size defaults to 1024x1024.
func (e *Engine) StartImage(ctx context.Context, prompt, size string) (string, error) {
	if size == "" {
		size = "1024x1024"
	}
	raw, err := e.call(ctx, http.MethodPost, "image", "/v1/images/generations", map[string]any{
		"model":  imageModel,
		"prompt": prompt,
		"size":   size,
		"n":      1,
	}, http.StatusOK)
	if err != nil {
		return "", err
	}
	id := firstString(raw, "request_id", "id")
	if id == "" {
		return "", fmt.Errorf("aiml image: no task_id in response: %s", raw)
	}
	return id, nil
}

// ImageStatus probes an image job. A completed job without an image URL is an error.
func (e *Engine) ImageStatus(ctx context.Context, id string) (task.State, error) {
	raw, err := e.call(ctx, http.MethodGet, "image status", "/v1/images/"+url.PathEscape(id), nil, http.StatusOK)
	if err != nil {
		return task.State{}, err
	}
	st := task.State{ID: id, Status: task.ParseStatus(gjson.GetBytes(raw, "status").String())}
	switch st.Status {
	case task.StatusSucceeded:
		st.URL = gjson.GetBytes(raw, "data.0.url").String()
		if st.URL == "" {
			return st, ErrNoImageURL
		}
	case task.StatusFailed:
		st.Reason = reason(raw)
	}
	return st, nil
}

func (e *Engine) GenerateText(ctx context.Context, in provider.TextRequest) (provider.TextResult, error) {
	model := e.Model
	if strings.TrimSpace(in.Model) != "" {
		model = in.Model
	}
	temp := in.Temperature
	if temp == 0 {
		temp = 0.7
	}
	var messages []map[string]string
	if in.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": in.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": in.Prompt})

	body := map[string]any{"model": model, "messages": messages, "temperature": temp}
	if in.MaxTokens > 0 {
		body["max_tokens"] = in.MaxTokens
	}
	raw, err := e.call(ctx, http.MethodPost, "chat", "/v1/chat/completions", body, http.StatusOK)
	if err != nil {
		return provider.TextResult{}, err
	}
	return provider.TextResult{
		Text:  gjson.GetBytes(raw, "choices.0.message.content").String(),
		ID:    gjson.GetBytes(raw, "id").String(),
		Model: gjson.GetBytes(raw, "model").String(),
	}, nil
}

// Download fetches a finished asset from the provider CDN.
func (e *Engine) Download(ctx context.Context, assetURL string) ([]byte, error) {
	data, _, err := provider.Download(ctx, e.httpc, e.Name(), assetURL)
	return data, err
}

func firstString(raw []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(raw, p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func reason(raw []byte) string {
	if m := gjson.GetBytes(raw, "error.message").String(); m != "" {
		return m
	}
	return "Unknown error"
}
