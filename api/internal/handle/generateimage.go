package handle

import (
	"fmt"
	"net/http"
	"strings"

	"content-proxy/api/internal/apierr"
	"content-proxy/api/internal/provider"
)

type generateImageRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size"`
	Style  string `json:"style"`
}

func (h *Handle) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req generateImageRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		h.fail(w, r, apierr.Invalid("Prompt is required"))
		return
	}
	if h.OpenAI == nil || h.OpenAI.APIKey == "" {
		h.fail(w, r, apierr.NotConfigured("OPENAI_API_KEY"))
		return
	}
	size := req.Size
	if size == "" {
		size = "1024x1024"
	}
	style := req.Style
	if style == "" {
		style = "vivid"
	}
	enhanced := fmt.Sprintf("%s. Style: %s. High quality, detailed, professional.", prompt, style)

	in := provider.ImageRequest{Prompt: enhanced, Size: size}
	// DALL·E 3 only knows these two; anything else lives in the prompt.
	if style == "vivid" || style == "natural" {
		in.Style = style
	}
	img, err := h.OpenAI.GenerateImage(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	imageURL := img.URL
	if imageURL == "" {
		imageURL = img.DataURL()
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"image_url":  imageURL,
		"prompt":     enhanced,
		"size":       size,
		"style":      style,
		"status":     "generated",
		"request_id": reqID(r.Context()),
	})
}
