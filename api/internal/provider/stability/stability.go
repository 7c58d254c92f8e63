// Package stability calls Stability AI SDXL text-to-image.
package stability

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"content-proxy/api/internal/provider"
)

const (
	DefaultBaseURL = "https://api.stability.ai/v1"
	engineID       = "stable-diffusion-xl-1024-v1-0"

	// SDXL only accepts fixed dimensions; 1344x768 is its 16:9 option.
	DefaultWidth  = 1344
	DefaultHeight = 768
)

type Engine struct {
	APIKey  string
	BaseURL string
	httpc   *http.Client
}

func New(key string) *Engine {
	return &Engine{APIKey: key, BaseURL: DefaultBaseURL, httpc: provider.NewHTTPClient(120 * time.Second)}
}

func (e *Engine) WithBaseURL(u string) *Engine {
	e.BaseURL = strings.TrimRight(u, "/")
	return e
}

func (e *Engine) WithHTTPClient(c *http.Client) *Engine {
	e.httpc = c
	return e
}

func (e *Engine) Name() string { return "stability" }

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type generationRequest struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    int          `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Samples     int          `json:"samples"`
	Steps       int          `json:"steps"`
}

// GenerateImage returns PNG bytes; the result id is the generation seed.
func (e *Engine) GenerateImage(ctx context.Context, in provider.ImageRequest) (provider.ImageResult, error) {
	if e.APIKey == "" {
		return provider.ImageResult{}, &provider.ConfigError{Env: "STABILITY_API_KEY"}
	}
	w, h := in.Width, in.Height
	if w <= 0 || h <= 0 {
		w, h = DefaultWidth, DefaultHeight
	}
	body := generationRequest{
		TextPrompts: []textPrompt{{Text: in.Prompt, Weight: 1}},
		CfgScale:    7,
		Height:      h,
		Width:       w,
		Samples:     1,
		Steps:       30,
	}
	req, err := provider.NewJSONRequest(ctx, http.MethodPost, fmt.Sprintf("%s/generation/%s/text-to-image", e.BaseURL, engineID), body)
	if err != nil {
		return provider.ImageResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	raw, _, err := provider.Do(e.httpc, e.Name(), "text-to-image", req, http.StatusOK)
	if err != nil {
		return provider.ImageResult{}, err
	}
	var out struct {
		Artifacts []struct {
			Base64       string `json:"base64"`
			Seed         int64  `json:"seed"`
			FinishReason string `json:"finishReason"`
		} `json:"artifacts"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return provider.ImageResult{}, fmt.Errorf("stability: bad JSON: %w", err)
	}
	if len(out.Artifacts) == 0 {
		return provider.ImageResult{}, fmt.Errorf("stability: no artifacts")
	}
	a := out.Artifacts[0]
	data, err := base64.StdEncoding.DecodeString(a.Base64)
	if err != nil {
		return provider.ImageResult{}, fmt.Errorf("stability: bad base64: %w", err)
	}
	return provider.ImageResult{Data: data, MIME: "image/png", ID: strconv.FormatInt(a.Seed, 10)}, nil
}
