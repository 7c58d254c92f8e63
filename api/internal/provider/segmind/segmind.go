// Package segmind calls the Segmind SDXL endpoint, which answers with raw image bytes.
package segmind

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"content-proxy/api/internal/metrics"
	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/util"
)

const DefaultBaseURL = "https://api.segmind.com/v1"

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

func (e *Engine) Name() string { return "segmind" }

func (e *Engine) GenerateImage(ctx context.Context, in provider.ImageRequest) (provider.ImageResult, error) {
	if e.APIKey == "" {
		return provider.ImageResult{}, &provider.ConfigError{Env: "SEGMIND_API_KEY"}
	}
	w, h := in.Width, in.Height
	if w <= 0 || h <= 0 {
		w, h = 1024, 1024
	}
	req, err := provider.NewJSONRequest(ctx, http.MethodPost, e.BaseURL+"/sdxl1.0-txt2img", map[string]any{
		"prompt":              in.Prompt,
		"negative_prompt":     "blurry, low quality, text, watermark",
		"style":               "base",
		"samples":             1,
		"scheduler":           "UniPC",
		"num_inference_steps": 25,
		"guidance_scale":      8,
		"img_width":           w,
		"img_height":          h,
		"base64":              false,
	})
	if err != nil {
		return provider.ImageResult{}, err
	}
	req.Header.Set("x-api-key", e.APIKey)
	req.Header.Set("Accept", "image/*")

	start := time.Now()
	resp, err := e.httpc.Do(req)
	if err != nil {
		metrics.RecordProviderCall(e.Name(), "txt2img", 0, time.Since(start))
		return provider.ImageResult{}, fmt.Errorf("segmind txt2img: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordProviderCall(e.Name(), "txt2img", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return provider.ImageResult{}, &provider.Error{Provider: e.Name(), Op: "txt2img", StatusCode: resp.StatusCode, Body: string(x)}
	}
	data, err := provider.ReadBody(resp.Body)
	if err != nil {
		return provider.ImageResult{}, fmt.Errorf("segmind txt2img: read: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = util.SniffMimeHTTP(data)
	}
	return provider.ImageResult{Data: data, MIME: mime}, nil
}
