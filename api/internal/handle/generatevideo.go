package handle

import (
	"fmt"
	"net/http"
	"strings"

	"content-proxy/api/internal/apierr"
	"content-proxy/api/internal/store"
)

type generateVideoRequest struct {
	Prompt   string `json:"prompt"`
	Duration int    `json:"duration"`
	Style    string `json:"style"`
}

// GenerateVideo renders the prompt into the Creatomate template and waits for the file.
func (h *Handle) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req generateVideoRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		h.fail(w, r, apierr.Invalid("Prompt is required"))
		return
	}
	if h.Creatomate == nil || h.Creatomate.APIKey == "" {
		h.fail(w, r, apierr.NotConfigured("CREATOMATE_API_KEY"))
		return
	}
	duration := req.Duration
	if duration <= 0 {
		duration = 5
	}
	style := req.Style
	if style == "" {
		style = "realistic"
	}
	enhanced := fmt.Sprintf("%s. Style: %s. Duration: %d seconds. High quality, professional output.", prompt, style, duration)

	ctx := r.Context()
	st, err := h.Creatomate.GenerateVideo(ctx, enhanced)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.journalStart(ctx, store.Generation{
		Function: "generate-video", Provider: h.Creatomate.Name(), Kind: "video",
		TaskID: st.ID, Status: statusCompleted, URL: st.URL, Prompt: prompt,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"video_url":  st.URL,
		"prompt":     enhanced,
		"duration":   duration,
		"style":      style,
		"status":     "generated",
		"request_id": reqID(ctx),
	})
}
