// Package openai covers chat completions and DALL·E image generation.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"content-proxy/api/internal/provider"
)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultModel      = "gpt-4-turbo-preview"
	DefaultImageModel = "dall-e-3"
)

type Engine struct {
	APIKey     string
	Model      string
	ImageModel string
	BaseURL    string
	httpc      *http.Client
}

func New(key, model, imageModel string) *Engine {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	if strings.TrimSpace(imageModel) == "" {
		imageModel = DefaultImageModel
	}
	return &Engine{
		APIKey:     key,
		Model:      model,
		ImageModel: imageModel,
		BaseURL:    DefaultBaseURL,
		httpc:      provider.NewHTTPClient(90 * time.Second),
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

func (e *Engine) Name() string     { return "openai" }
func (e *Engine) GetModel() string { return e.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *provider.Usage `json:"usage"`
}

// GenerateText calls chat completions; MaxTokens 0 means 2000 and Temperature 0 means 0.7.
func (e *Engine) GenerateText(ctx context.Context, in provider.TextRequest) (provider.TextResult, error) {
	if e.APIKey == "" {
		return provider.TextResult{}, &provider.ConfigError{Env: "OPENAI_API_KEY"}
	}
	model := e.Model
	if strings.TrimSpace(in.Model) != "" {
		model = in.Model
	}
	body := chatRequest{
		Model:       model,
		MaxTokens:   in.MaxTokens,
		Temperature: in.Temperature,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = 2000
	}
	if body.Temperature == 0 {
		body.Temperature = 0.7
	}
	if in.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: in.SystemPrompt})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: in.Prompt})

	req, err := provider.NewJSONRequest(ctx, http.MethodPost, e.BaseURL+"/chat/completions", body)
	if err != nil {
		return provider.TextResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	raw, _, err := provider.Do(e.httpc, e.Name(), "chat", req, http.StatusOK)
	if err != nil {
		return provider.TextResult{}, err
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return provider.TextResult{}, fmt.Errorf("openai chat: bad JSON: %w", err)
	}
	if len(out.Choices) == 0 {
		return provider.TextResult{}, fmt.Errorf("openai chat: no choices")
	}
	return provider.TextResult{
		Text:  out.Choices[0].Message.Content,
		ID:    out.ID,
		Model: out.Model,
		Usage: out.Usage,
	}, nil
}

// GenerateImage asks for a hosted URL. Style is passed through only when set.
func (e *Engine) GenerateImage(ctx context.Context, in provider.ImageRequest) (provider.ImageResult, error) {
	if e.APIKey == "" {
		return provider.ImageResult{}, &provider.ConfigError{Env: "OPENAI_API_KEY"}
	}
	size := in.Size
	if size == "" {
		size = "1024x1024"
	}
	body := map[string]any{
		"model":           e.ImageModel,
		"prompt":          in.Prompt,
		"n":               1,
		"size":            size,
		"response_format": "url",
	}
	if in.Style != "" {
		body["style"] = in.Style
	}
	req, err := provider.NewJSONRequest(ctx, http.MethodPost, e.BaseURL+"/images/generations", body)
	if err != nil {
		return provider.ImageResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	raw, _, err := provider.Do(e.httpc, e.Name(), "image", req, http.StatusOK)
	if err != nil {
		return provider.ImageResult{}, err
	}
	var out struct {
		Created int64 `json:"created"`
		Data    []struct {
			URL     string `json:"url"`
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return provider.ImageResult{}, fmt.Errorf("openai image: bad JSON: %w", err)
	}
	if len(out.Data) == 0 {
		return provider.ImageResult{}, fmt.Errorf("openai image: empty data")
	}
	res := provider.ImageResult{URL: out.Data[0].URL, ID: fmt.Sprint(out.Created)}
	if b := out.Data[0].B64JSON; b != "" {
		data, err := base64.StdEncoding.DecodeString(b)
		if err != nil {
			return provider.ImageResult{}, fmt.Errorf("openai image: bad base64: %w", err)
		}
		res.Data = data
	}
	return res, nil
}

// Download fetches the generated image bytes.
func (e *Engine) Download(ctx context.Context, url string) ([]byte, error) {
	data, _, err := provider.Download(ctx, e.httpc, e.Name(), url)
	return data, err
}

// ErrorMessage extracts error.message from an OpenAI error body.
func ErrorMessage(body string) string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &env); err != nil || env.Error.Message == "" {
		return "Неизвестная ошибка"
	}
	return env.Error.Message
}
