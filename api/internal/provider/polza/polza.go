// Package polza is a client for the Polza AI gateway.
package polza

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"content-proxy/api/internal/metrics"
	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/task"
	"content-proxy/api/internal/util"
)

const (
	DefaultBaseURL = "https://api.polza.ai/api/v1"

	TextModel  = "openai/gpt-4o"
	ImageModel = "kie/grok-imagine"
	VideoModel = "kling/kling2.5-text-to-video"
)

// Kind selects the async endpoint family.
type Kind string

const (
	KindImage Kind = "images"
	KindVideo Kind = "videos"
)

var ErrNoResult = errors.New("Задача выполнена, но результат не найден в ответе.")

type Engine struct {
	APIKey  string
	BaseURL string
	httpc   *http.Client

	ImagePoll task.Options
	VideoPoll task.Options
}

func New(key, baseURL string) *Engine {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Engine{
		APIKey:    key,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		httpc:     provider.NewHTTPClient(180 * time.Second),
		ImagePoll: task.Options{Interval: 2 * time.Second, Timeout: 300 * time.Second, RetryProbeErrors: true},
		VideoPoll: task.Options{Interval: 3 * time.Second, Timeout: 900 * time.Second, RetryProbeErrors: true},
	}
}

func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	e.httpc = c
	return e
}

func (e *Engine) Name() string     { return "polza" }
func (e *Engine) GetModel() string { return TextModel }

func (e *Engine) call(ctx context.Context, method, op, path string, body any) ([]byte, error) {
	if e.APIKey == "" {
		return nil, &provider.ConfigError{Env: "POLZA_AI_API_KEY"}
	}
	req, err := provider.NewJSONRequest(ctx, method, e.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)
	raw, _, err := provider.Do(e.httpc, e.Name(), op, req)
	return raw, err
}

func (e *Engine) GenerateText(ctx context.Context, in provider.TextRequest) (provider.TextResult, error) {
	var messages []map[string]string
	if in.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": in.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": in.Prompt})
	model := TextModel
	if in.Model != "" {
		model = in.Model
	}
	body := map[string]any{"model": model, "messages": messages, "stream": false}
	if in.MaxTokens > 0 {
		body["max_tokens"] = in.MaxTokens
	}

	raw, err := e.call(ctx, http.MethodPost, "chat", "/chat/completions", body)
	if err != nil {
		return provider.TextResult{}, err
	}
	content := gjson.GetBytes(raw, "choices.0.message.content")
	if !content.Exists() {
		return provider.TextResult{}, fmt.Errorf("polza chat: no choices in response: %s", raw)
	}
	return provider.TextResult{
		Text:  content.String(),
		ID:    gjson.GetBytes(raw, "id").String(),
		Model: model,
	}, nil
}

// Start queues an image or video generation and returns the provider request id.
func (e *Engine) Start(ctx context.Context, kind Kind, prompt, size string) (string, error) {
	body := map[string]any{"prompt": prompt}
	switch kind {
	case KindImage:
		if size == "" {
			size = "1024x1024"
		}
		body["model"] = ImageModel
		body["size"] = size
		body["n"] = 1
	case KindVideo:
		body["model"] = VideoModel
	default:
		return "", fmt.Errorf("polza: unknown kind %q", kind)
	}

	raw, err := e.call(ctx, http.MethodPost, string(kind), "/"+string(kind)+"/generations", body)
	if err != nil {
		return "", err
	}
	id := RequestID(raw)
	if id == "" {
		return "", errors.New("не удалось получить ID задачи от API")
	}
	return id, nil
}

// Status performs one probe. For a finished task the asset bytes are fetched into State.Data;
// a finished task whose asset cannot be obtained is reported as failed.
func (e *Engine) Status(ctx context.Context, kind Kind, id string) (task.State, error) {
	raw, err := e.call(ctx, http.MethodGet, string(kind)+" status", "/"+string(kind)+"/"+url.PathEscape(id), nil)
	if err != nil {
		return task.State{}, err
	}
	rawStatus := strings.ToLower(gjson.GetBytes(raw, "status").String())
	st := task.State{ID: id, Status: task.ParseStatus(rawStatus)}
	switch st.Status {
	case task.StatusSucceeded:
		data, err := e.result(ctx, raw)
		switch {
		case errors.Is(err, ErrNoResult):
			st.Status, st.Reason = task.StatusFailed, err.Error()
		case err != nil:
			st.Status, st.Reason = task.StatusFailed, fmt.Sprintf("не удалось получить результат: %v", err)
		default:
			st.Data = data
		}
	case task.StatusFailed:
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = "Причина не указана."
		}
		st.Reason = fmt.Sprintf("задача провалена (статус: %s): %s", rawStatus, msg)
	}
	return st, nil
}

// Wait polls until the task finishes. Failed probes are retried until the
// kind's timeout runs out.
func (e *Engine) Wait(ctx context.Context, kind Kind, id string) (task.State, error) {
	opts := e.ImagePoll
	if kind == KindVideo {
		opts = e.VideoPoll
	}
	opts.OnAttempt = func(int, task.State, error) { metrics.RecordPollAttempt(e.Name()) }
	return task.Poll(ctx, func(ctx context.Context) (task.State, error) {
		return e.Status(ctx, kind, id)
	}, opts)
}

// GenerateImage runs the full start and wait cycle.
func (e *Engine) GenerateImage(ctx context.Context, in provider.ImageRequest) (provider.ImageResult, error) {
	id, err := e.Start(ctx, KindImage, in.Prompt, in.Size)
	if err != nil {
		return provider.ImageResult{}, err
	}
	st, err := e.Wait(ctx, KindImage, id)
	if err != nil {
		return provider.ImageResult{}, err
	}
	return provider.ImageResult{Data: st.Data, ID: id}, nil
}

// RequestID picks the first id-looking string among the known keys.
func RequestID(raw []byte) string {
	for _, key := range []string{"requestId", "request_id", "id", "task_id"} {
		v := gjson.GetBytes(raw, key)
		if v.Type == gjson.String && len(v.Str) > 8 && !strings.Contains(v.Str, "/") {
			return v.Str
		}
	}
	return ""
}

func (e *Engine) result(ctx context.Context, raw []byte) ([]byte, error) {
	items := gjson.GetBytes(raw, "data")
	var candidates []gjson.Result
	if items.IsArray() {
		candidates = items.Array()
	} else {
		candidates = []gjson.Result{gjson.ParseBytes(raw)}
	}

	for _, item := range candidates {
		if !item.IsObject() {
			continue
		}
		for _, key := range []string{"b64_json", "b64", "image_b64"} {
			if v := item.Get(key); v.Type == gjson.String {
				data, _, err := util.DecodeBase64MaybeDataURL(v.Str)
				if err != nil {
					return nil, fmt.Errorf("polza: decode %s: %w", key, err)
				}
				return data, nil
			}
		}
		for _, key := range []string{"url", "image_url"} {
			if v := item.Get(key); v.Type == gjson.String && strings.HasPrefix(v.Str, "http") {
				data, _, err := provider.Download(ctx, e.httpc, e.Name(), v.Str)
				return data, err
			}
		}
	}
	return nil, ErrNoResult
}
