// Package creatomate renders template-based videos.
package creatomate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"content-proxy/api/internal/metrics"
	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/task"
)

const DefaultBaseURL = "https://api.creatomate.com/v1"

type Engine struct {
	APIKey      string
	TemplateID  string
	TextElement string
	BaseURL     string
	Poll        task.Options
	httpc       *http.Client
}

func New(key, templateID, textElement string) *Engine {
	if textElement == "" {
		textElement = "Text"
	}
	return &Engine{
		APIKey:      key,
		TemplateID:  templateID,
		TextElement: textElement,
		BaseURL:     DefaultBaseURL,
		Poll:        task.Options{Interval: 3 * time.Second, Timeout: 5 * time.Minute},
		httpc:       provider.NewHTTPClient(30 * time.Second),
	}
}

func (e *Engine) WithBaseURL(u string) *Engine {
	e.BaseURL = strings.TrimRight(u, "/")
	return e
}

func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	e.httpc = c
	return e
}

func (e *Engine) Name() string { return "creatomate" }

func (e *Engine) check() error {
	if e.APIKey == "" {
		return &provider.ConfigError{Env: "CREATOMATE_API_KEY"}
	}
	if e.TemplateID == "" {
		return &provider.ConfigError{Env: "CREATOMATE_TEMPLATE_ID"}
	}
	return nil
}

// StartRender queues the template with text placed into TextElement.
func (e *Engine) StartRender(ctx context.Context, text string) (string, error) {
	if err := e.check(); err != nil {
		return "", err
	}
	req, err := provider.NewJSONRequest(ctx, http.MethodPost, e.BaseURL+"/renders", map[string]any{
		"template_id":   e.TemplateID,
		"modifications": map[string]any{e.TextElement: text},
	})
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)
	raw, _, err := provider.Do(e.httpc, e.Name(), "render", req)
	if err != nil {
		return "", err
	}
	// the API answers with one render per output format
	id := gjson.GetBytes(raw, "0.id").String()
	if id == "" {
		id = gjson.GetBytes(raw, "id").String()
	}
	if id == "" {
		return "", fmt.Errorf("creatomate render: no id in response: %s", raw)
	}
	return id, nil
}

func (e *Engine) Render(ctx context.Context, id string) (task.State, error) {
	req, err := provider.NewJSONRequest(ctx, http.MethodGet, e.BaseURL+"/renders/"+url.PathEscape(id), nil)
	if err != nil {
		return task.State{}, err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)
	raw, _, err := provider.Do(e.httpc, e.Name(), "render status", req, http.StatusOK)
	if err != nil {
		return task.State{}, err
	}
	st := task.State{
		ID:     id,
		Status: task.ParseStatus(gjson.GetBytes(raw, "status").String()),
		URL:    gjson.GetBytes(raw, "url").String(),
	}
	if st.Status == task.StatusFailed {
		st.Reason = gjson.GetBytes(raw, "error_message").String()
	}
	return st, nil
}

// GenerateVideo renders text and waits for the finished file.
func (e *Engine) GenerateVideo(ctx context.Context, text string) (task.State, error) {
	id, err := e.StartRender(ctx, text)
	if err != nil {
		return task.State{}, err
	}
	opts := e.Poll
	opts.OnAttempt = func(int, task.State, error) { metrics.RecordPollAttempt(e.Name()) }
	st, err := task.Poll(ctx, func(ctx context.Context) (task.State, error) {
		return e.Render(ctx, id)
	}, opts)
	if err != nil {
		return st, err
	}
	if st.URL == "" {
		return st, fmt.Errorf("creatomate render %s: succeeded without url", id)
	}
	return st, nil
}
