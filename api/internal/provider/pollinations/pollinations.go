// Package pollinations builds keyless image URLs on image.pollinations.ai.
package pollinations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"content-proxy/api/internal/provider"
)

const DefaultBaseURL = "https://image.pollinations.ai"

type Engine struct {
	BaseURL string
}

func New() *Engine { return &Engine{BaseURL: DefaultBaseURL} }

func (e *Engine) Name() string { return "pollinations" }

// URL renders prompt at w×h. The image is produced when the URL is first fetched.
func (e *Engine) URL(prompt string, w, h int) string {
	return fmt.Sprintf("%s/prompt/%s?width=%d&height=%d", strings.TrimRight(e.BaseURL, "/"), url.PathEscape(prompt), w, h)
}

// GenerateImage returns the lazy URL; it never calls the network.
func (e *Engine) GenerateImage(_ context.Context, in provider.ImageRequest) (provider.ImageResult, error) {
	w, h := in.Width, in.Height
	if w <= 0 || h <= 0 {
		w, h = 1024, 576
	}
	return provider.ImageResult{URL: e.URL(in.Prompt, w, h)}, nil
}
