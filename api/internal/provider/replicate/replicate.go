// Package replicate runs predictions on Replicate.
package replicate

import (
	"context"
	"encoding/json"
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

const (
	DefaultBaseURL = "https://api.replicate.com/v1"

	// StableVideoDiffusion turns a still image into a short clip.
	StableVideoDiffusion = "stability-ai/stable-video-diffusion:3f0457e4619daac51203dedb472816fd4af51f3149fa7a9e0b5ffcf1b8172438"
)

type Engine struct {
	APIToken string
	BaseURL  string
	Poll     task.Options
	httpc    *http.Client
}

func New(token string) *Engine {
	return &Engine{
		APIToken: token,
		BaseURL:  DefaultBaseURL,
		Poll:     task.Options{Interval: 2 * time.Second, MaxAttempts: 120},
		httpc:    provider.NewHTTPClient(60 * time.Second),
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

func (e *Engine) Name() string { return "replicate" }

func (e *Engine) request(ctx context.Context, method, path string, body any) (*http.Request, error) {
	if e.APIToken == "" {
		return nil, &provider.ConfigError{Env: "REPLICATE_API_TOKEN"}
	}
	req, err := provider.NewJSONRequest(ctx, method, e.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+e.APIToken)
	return req, nil
}

// CreatePrediction starts version with input and returns the prediction id.
func (e *Engine) CreatePrediction(ctx context.Context, version string, input map[string]any) (string, error) {
	req, err := e.request(ctx, http.MethodPost, "/predictions", map[string]any{"version": version, "input": input})
	if err != nil {
		return "", err
	}
	raw, _, err := provider.Do(e.httpc, e.Name(), "create", req, http.StatusCreated, http.StatusOK)
	if err != nil {
		return "", err
	}
	id := gjson.GetBytes(raw, "id").String()
	if id == "" {
		return "", fmt.Errorf("replicate create: no id in response: %s", raw)
	}
	return id, nil
}

// Prediction probes one prediction. Output may be a string or a list of URLs.
func (e *Engine) Prediction(ctx context.Context, id string) (task.State, error) {
	req, err := e.request(ctx, http.MethodGet, "/predictions/"+url.PathEscape(id), nil)
	if err != nil {
		return task.State{}, err
	}
	raw, _, err := provider.Do(e.httpc, e.Name(), "get", req, http.StatusOK)
	if err != nil {
		return task.State{}, err
	}
	st := task.State{ID: id, Status: task.ParseStatus(gjson.GetBytes(raw, "status").String())}
	switch st.Status {
	case task.StatusSucceeded:
		out := gjson.GetBytes(raw, "output")
		if out.IsArray() {
			out = out.Get("0")
		}
		st.URL = out.String()
	case task.StatusFailed:
		st.Reason = errorText(gjson.GetBytes(raw, "error"))
	}
	return st, nil
}

// GenerateVideo animates a Pollinations still of prompt with Stable Video
// Diffusion and waits for the clip.
func (e *Engine) GenerateVideo(ctx context.Context, prompt, inputImage string) (task.State, error) {
	id, err := e.CreatePrediction(ctx, StableVideoDiffusion, map[string]any{
		"cond_aug":          0.02,
		"decoding_t":        7,
		"input_image":       inputImage,
		"video_length":      "auto",
		"sizing_strategy":   "maintain_aspect_ratio",
		"motion_bucket_id":  127,
		"frames_per_second": 24,
	})
	if err != nil {
		return task.State{}, err
	}
	opts := e.Poll
	opts.OnAttempt = func(int, task.State, error) { metrics.RecordPollAttempt(e.Name()) }
	st, err := task.Poll(ctx, func(ctx context.Context) (task.State, error) {
		return e.Prediction(ctx, id)
	}, opts)
	if err != nil {
		return st, err
	}
	if st.URL == "" {
		return st, fmt.Errorf("replicate prediction %s: empty output", id)
	}
	return st, nil
}

func errorText(v gjson.Result) string {
	switch {
	case !v.Exists() || v.Type == gjson.Null:
		return ""
	case v.Type == gjson.String:
		return v.Str
	default:
		b, _ := json.Marshal(v.Value())
		return string(b)
	}
}
