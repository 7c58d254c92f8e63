// Package provider holds what the generation clients share: request and
// result types, the typed upstream error and the fallback chains.
package provider

import (
	"context"
	"fmt"
	"strings"

	"content-proxy/api/internal/util"
)

// Error is a non-2xx answer from an upstream API.
type Error struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s %d: %s", e.Provider, e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

// ConfigError reports a credential missing from the environment.
type ConfigError struct {
	Env string
}

func (e *ConfigError) Error() string { return e.Env + " is empty" }

type TextRequest struct {
	Prompt       string
	SystemPrompt string
	Model        string
	MaxTokens    int
	Temperature  float64
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type TextResult struct {
	Text  string
	ID    string
	Model string
	Usage *Usage
}

type ImageRequest struct {
	Prompt string
	Size   string
	Style  string
	Width  int
	Height int
}

// ImageResult carries either a remote URL or the raw bytes.
type ImageResult struct {
	URL  string
	Data []byte
	MIME string
	ID   string
}

// DataURL renders inline bytes as a data URL, otherwise returns URL.
func (r ImageResult) DataURL() string {
	if len(r.Data) == 0 {
		return r.URL
	}
	return util.EncodeDataURL(r.MIME, r.Data)
}

type TextGenerator interface {
	Name() string
	GenerateText(ctx context.Context, req TextRequest) (TextResult, error)
}

type ImageGenerator interface {
	Name() string
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error)
}
