package handle

import (
	"encoding/base64"
	"net/http"
	"strings"

	"content-proxy/api/internal/apierr"
	"content-proxy/api/internal/store"
	"content-proxy/api/internal/task"
)

// Generate is the compact AIML front: video, check_video, image, check_image.
func (h *Handle) Generate(w http.ResponseWriter, r *http.Request) {
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

	switch req.Action {
	case "video", "image":
		if prompt == "" {
			h.fail(w, r, apierr.Invalid("Prompt обязателен"))
			return
		}
		var (
			id  string
			err error
		)
		if req.Action == "video" {
			id, err = h.AIML.StartVideo(ctx, prompt)
		} else {
			id, err = h.AIML.StartImage(ctx, prompt, req.Size)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.journalStart(ctx, store.Generation{Function: "generate", Provider: "aiml", Kind: req.Action, TaskID: id, Prompt: prompt})
		writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": statusProcessing})

	case "check_video":
		if taskID == "" {
			h.fail(w, r, apierr.Invalid("task_id обязателен"))
			return
		}
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
			writeJSON(w, http.StatusOK, map[string]string{"status": statusFailed})
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": statusProcessing})
		}

	case "check_image":
		if taskID == "" {
			h.fail(w, r, apierr.Invalid("task_id обязателен"))
			return
		}
		// probe errors read as "not ready yet"
		st, err := h.AIML.ImageStatus(ctx, taskID)
		if err != nil || st.Status != task.StatusSucceeded {
			writeJSON(w, http.StatusOK, map[string]string{"status": statusProcessing})
			return
		}
		data, err := h.AIML.Download(ctx, st.URL)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.journalUpdate(ctx, "aiml", taskID, statusCompleted, st.URL)
		writeJSON(w, http.StatusOK, map[string]string{"status": statusCompleted, "image_b64": base64.StdEncoding.EncodeToString(data)})

	default:
		h.fail(w, r, apierr.Invalid("Неизвестное действие: "+req.Action))
	}
}
