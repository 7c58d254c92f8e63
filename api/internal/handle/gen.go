package handle

import (
	"encoding/base64"
	"net/http"
	"strings"

	"content-proxy/api/internal/apierr"
	"content-proxy/api/internal/provider"
)

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// Gen draws one DALL·E image and returns it inline.
func (h *Handle) Gen(w http.ResponseWriter, r *http.Request) {
	if h.OpenAI == nil || h.OpenAI.APIKey == "" {
		h.fail(w, r, apierr.NotConfigured("OPENAI_API_KEY"))
		return
	}
	var req promptRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		h.fail(w, r, apierr.Invalid("Prompt обязателен"))
		return
	}

	ctx := r.Context()
	img, err := h.OpenAI.GenerateImage(ctx, provider.ImageRequest{Prompt: prompt, Size: "1024x1024"})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data := img.Data
	if len(data) == 0 {
		if data, err = h.OpenAI.Download(ctx, img.URL); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"image_b64": base64.StdEncoding.EncodeToString(data),
		"status":    statusCompleted,
	})
}
