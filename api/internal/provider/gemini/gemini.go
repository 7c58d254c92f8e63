// Package gemini is the Google Gemini text fallback.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"content-proxy/api/internal/metrics"
	"content-proxy/api/internal/provider"
)

const DefaultModel = "gemini-2.5-flash"

type Engine struct {
	APIKey string
	Model  string
	opts   []option.ClientOption
}

func New(key, model string) *Engine {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Engine{APIKey: key, Model: model}
}

// WithClientOptions appends options passed to genai.NewClient.
func (e *Engine) WithClientOptions(opts ...option.ClientOption) *Engine {
	e.opts = append(e.opts, opts...)
	return e
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

func (e *Engine) GenerateText(ctx context.Context, in provider.TextRequest) (provider.TextResult, error) {
	if e.APIKey == "" {
		return provider.TextResult{}, &provider.ConfigError{Env: "GEMINI_API_KEY"}
	}
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(e.APIKey)}, e.opts...)...)
	if err != nil {
		return provider.TextResult{}, err
	}
	defer cl.Close()

	model := e.Model
	if strings.TrimSpace(in.Model) != "" && strings.HasPrefix(in.Model, "gemini") {
		model = in.Model
	}
	m := cl.GenerativeModel(model)
	if m == nil {
		return provider.TextResult{}, fmt.Errorf("gemini: model is nil")
	}
	temp := float32(in.Temperature)
	if temp == 0 {
		temp = 0.7
	}
	m.GenerationConfig = genai.GenerationConfig{Temperature: &temp}
	if in.MaxTokens > 0 {
		n := int32(in.MaxTokens)
		m.GenerationConfig.MaxOutputTokens = &n
	}
	if in.SystemPrompt != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(in.SystemPrompt)}}
	}

	// retries for transient 5xx
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		start := time.Now()
		resp, err := m.GenerateContent(ctx, genai.Text(in.Prompt))
		if err != nil {
			metrics.RecordProviderCall(e.Name(), "generate", 0, time.Since(start))
			lastErr = err
			if ctx.Err() != nil {
				return provider.TextResult{}, ctx.Err()
			}
			select {
			case <-ctx.Done():
				return provider.TextResult{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		metrics.RecordProviderCall(e.Name(), "generate", 200, time.Since(start))
		txt := firstText(resp)
		if txt == "" {
			return provider.TextResult{}, errors.New("gemini: empty response")
		}
		return provider.TextResult{Text: strings.TrimSpace(txt), Model: model}, nil
	}
	return provider.TextResult{}, fmt.Errorf("gemini generate: %w", lastErr)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
