package handle

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"content-proxy/api/internal/apierr"
	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/provider/aiml"
	"content-proxy/api/internal/store"
	"content-proxy/api/internal/task"
)

type aimlRequest struct {
	Action       string `json:"action"`
	Prompt       string `json:"prompt"`
	Size         string `json:"size"`
	SystemPrompt string `json:"system_prompt"`
	TaskID       string `json:"task_id"`
}

// AIContent starts and checks AIML video/image tasks and runs one-shot chat.
func (h *Handle) AIContent(w http.ResponseWriter, r *http.Request) {
	if h.AIML == nil || h.AIML.APIKey == "" {
		h.fail(w, r, apierr.NotConfigured("AIMLAPI_KEY"))
		return
	}
	var req aimlRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	prompt := strings.TrimSpace(req.Prompt)
	taskID := strings.TrimSpace(req.TaskID)

	needPrompt := req.Action == "start_video" || req.Action == "start_image" || req.Action == "text"
	needTask := req.Action == "check_video" || req.Action == "check_image"
	if needPrompt && prompt == "" {
		h.fail(w, r, apierr.Invalid("Prompt is required"))
		return
	}
	if needTask && taskID == "" {
		h.fail(w, r, apierr.Invalid("task_id is required"))
		return
	}

	switch req.Action {
	case "start_video":
		id, err := h.AIML.StartVideo(ctx, prompt)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.journalStart(ctx, store.Generation{Function: "ai-content", Provider: "aiml", Kind: "video", TaskID: id, Prompt: prompt})
		writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": statusProcessing})

	case "check_video":
		st, err := h.AIML.VideoStatus(ctx, taskID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		switch st.Status {
		case task.StatusSucceeded:
			h.journalUpdate(ctx, "aiml", taskID, statusCompleted, st.URL)
			writeJSON(w, http.StatusOK, map[string]string{"status": statusCompleted, "video_url": st.URL})
		case task.StatusFailed:
			h.journalUpdate(ctx, "aiml", taskID, statusFailed, "")
			writeJSON(w, http.StatusOK, map[string]string{"status": statusFailed, "message": st.Reason})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": statusProcessing})
		}

	case "start_image":
		id, err := h.AIML.StartImage(ctx, prompt, req.Size)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.journalStart(ctx, store.Generation{Function: "ai-content", Provider: "aiml", Kind: "image", TaskID: id, Prompt: prompt})
		writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": statusProcessing})

	case "check_image":
		h.checkAIMLImage(w, r, taskID)

	case "text":
		res, err := h.AIML.GenerateText(ctx, provider.TextRequest{Prompt: prompt, SystemPrompt: req.SystemPrompt})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"text": res.Text})

	default:
		h.fail(w, r, apierr.Invalid("Unknown action: "+req.Action))
	}
}

// checkAIMLImage reports probe problems in the body with status 200 so the client keeps polling.
func (h *Handle) checkAIMLImage(w http.ResponseWriter, r *http.Request, taskID string) {
	ctx := r.Context()
	st, err := h.AIML.ImageStatus(ctx, taskID)
	var pe *provider.Error
	switch {
	case errors.As(err, &pe):
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": fmt.Sprintf("HTTP %d", pe.StatusCode)})
		return
	case errors.Is(err, aiml.ErrNoImageURL):
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "No image URL in response"})
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}

	switch st.Status {
	case task.StatusSucceeded:
		data, err := h.AIML.Download(ctx, st.URL)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "Failed to fetch image: " + err.Error()})
			return
		}
		h.journalUpdate(ctx, "aiml", taskID, statusCompleted, st.URL)
		writeJSON(w, http.StatusOK, map[string]string{"status": statusCompleted, "image_b64": base64.StdEncoding.EncodeToString(data)})
	case task.StatusFailed:
		h.journalUpdate(ctx, "aiml", taskID, statusFailed, "")
		writeJSON(w, http.StatusOK, map[string]string{"status": statusFailed, "message": st.Reason})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": statusProcessing})
	}
}
