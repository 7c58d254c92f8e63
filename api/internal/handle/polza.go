package handle

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"content-proxy/api/internal/apierr"
	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/provider/polza"
	"content-proxy/api/internal/store"
	"content-proxy/api/internal/task"
)

type polzaRequest struct {
	Action       string `json:"action"`
	Prompt       string `json:"prompt"`
	Size         string `json:"size"`
	SystemPrompt string `json:"system_prompt"`
	TaskID       string `json:"task_id"`
	Wait         bool   `json:"wait"`
}

// PolzaAI serves text, image and video through the Polza AI gateway.
func (h *Handle) PolzaAI(w http.ResponseWriter, r *http.Request) {
	if h.Polza == nil || h.Polza.APIKey == "" {
		h.fail(w, r, apierr.NotConfigured("POLZA_AI_API_KEY"))
		return
	}
	var req polzaRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := r.Context()
	prompt := strings.TrimSpace(req.Prompt)
	taskID := strings.TrimSpace(req.TaskID)

	switch req.Action {
	case "text":
		if prompt == "" {
			h.fail(w, r, apierr.Invalid("Prompt обязателен"))
			return
		}
		res, err := h.Polza.GenerateText(ctx, provider.TextRequest{Prompt: prompt, SystemPrompt: req.SystemPrompt})
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"text": res.Text})

	case "image", "video":
		if prompt == "" {
			h.fail(w, r, apierr.Invalid("Prompt обязателен"))
			return
		}
		h.polzaStart(w, r, polzaKind(req.Action), prompt, req.Size, req.Wait)

	case "check_image", "check_video":
		if taskID == "" {
			h.fail(w, r, apierr.Invalid("task_id обязателен"))
			return
		}
		h.polzaCheck(w, r, polzaKind(req.Action), taskID)

	default:
		h.fail(w, r, apierr.Invalid("Неизвестное действие. Доступно: text, image, video, check_image, check_video"))
	}
}

func polzaKind(action string) polza.Kind {
	if strings.HasSuffix(action, "video") {
		return polza.KindVideo
	}
	return polza.KindImage
}

func resultKey(kind polza.Kind) string {
	if kind == polza.KindVideo {
		return "video_b64"
	}
	return "image_b64"
}

func journalKind(kind polza.Kind) string {
	if kind == polza.KindVideo {
		return "video"
	}
	return "image"
}

func (h *Handle) polzaStart(w http.ResponseWriter, r *http.Request, kind polza.Kind, prompt, size string, wait bool) {
	ctx := r.Context()
	eng := h.Polza
	id, err := eng.Start(ctx, kind, prompt, size)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.journalStart(ctx, store.Generation{Function: "polza-ai", Provider: eng.Name(), Kind: journalKind(kind), TaskID: id, Prompt: prompt})
	if !wait {
		writeJSON(w, http.StatusOK, map[string]string{"task_id": id, "status": statusProcessing})
		return
	}

	st, err := eng.Wait(ctx, kind, id)
	if err != nil {
		if st.Status == task.StatusFailed {
			h.journalUpdate(ctx, eng.Name(), id, statusFailed, "")
		}
		h.fail(w, r, err)
		return
	}
	h.journalUpdate(ctx, eng.Name(), id, statusCompleted, st.URL)
	writeJSON(w, http.StatusOK, map[string]string{resultKey(kind): base64.StdEncoding.EncodeToString(st.Data)})
}

// polzaCheck answers "processing" for transient probe failures; credential and balance errors surface.
func (h *Handle) polzaCheck(w http.ResponseWriter, r *http.Request, kind polza.Kind, id string) {
	ctx := r.Context()
	eng := h.Polza
	st, err := eng.Status(ctx, kind, id)
	var pe *provider.Error
	switch {
	case errors.As(err, &pe) && !credentialStatus(pe.StatusCode):
		logger(ctx).Debug("polza probe not ready", zap.String("task_id", id), zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]string{"status": statusProcessing})
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}

	switch st.Status {
	case task.StatusSucceeded:
		h.journalUpdate(ctx, eng.Name(), id, statusCompleted, "")
		body := map[string]string{"status": statusCompleted}
		body[resultKey(kind)] = base64.StdEncoding.EncodeToString(st.Data)
		writeJSON(w, http.StatusOK, body)
	case task.StatusFailed:
		h.journalUpdate(ctx, eng.Name(), id, statusFailed, "")
		writeJSON(w, http.StatusOK, map[string]string{"status": statusFailed, "message": st.Reason})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": statusProcessing})
	}
}

func credentialStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusPaymentRequired
}
