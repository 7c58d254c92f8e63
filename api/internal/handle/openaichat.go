package handle

import (
	"errors"
	"net/http"
	"strings"

	"content-proxy/api/internal/apierr"
	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/provider/openai"
)

const chatSystemPrompt = "Ты полезный AI-помощник, который отвечает на русском языке."

type chatRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
}

// OpenAIChat is a thin chat-completions proxy. Upstream failures keep their status.
func (h *Handle) OpenAIChat(w http.ResponseWriter, r *http.Request) {
	if h.OpenAI == nil || h.OpenAI.APIKey == "" {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "OPENAI_API_KEY не настроен",
			"message": "Добавьте ключ OpenAI в секреты проекта",
		})
		return
	}
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		h.fail(w, r, apierr.Invalid("Параметр prompt обязателен"))
		return
	}
	in := provider.TextRequest{Prompt: prompt, SystemPrompt: chatSystemPrompt, MaxTokens: req.MaxTokens, Temperature: 0.7}
	if req.Temperature != nil && *req.Temperature > 0 {
		in.Temperature = *req.Temperature
	}

	res, err := h.OpenAI.GenerateText(r.Context(), in)
	var pe *provider.Error
	if errors.As(err, &pe) {
		logFailure(r.Context(), pe.StatusCode, err)
		writeJSON(w, pe.StatusCode, map[string]any{
			"error":   "Ошибка OpenAI API",
			"details": openai.ErrorMessage(pe.Body),
			"status":  pe.StatusCode,
		})
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var usage any = map[string]any{}
	if res.Usage != nil {
		usage = res.Usage
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"text":    res.Text,
		"model":   res.Model,
		"usage":   usage,
		"id":      res.ID,
	})
}
