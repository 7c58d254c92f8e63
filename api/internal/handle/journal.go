package handle

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"content-proxy/api/internal/store"
)

const (
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusFailed     = "failed"
)

// journalStart records a started task. Journal failures never fail the request.
func (h *Handle) journalStart(ctx context.Context, g store.Generation) {
	if h.Generations == nil || g.TaskID == "" {
		return
	}
	if g.Status == "" {
		g.Status = statusProcessing
	}
	if !strings.HasPrefix(g.URL, "http") {
		g.URL = ""
	}
	if err := h.Generations.Record(ctx, g); err != nil {
		logger(ctx).Warn("journal record", zap.String("task_id", g.TaskID), zap.Error(err))
	}
}

func (h *Handle) journalUpdate(ctx context.Context, provider, taskID, status, url string) {
	if h.Generations == nil || taskID == "" {
		return
	}
	if !strings.HasPrefix(url, "http") {
		url = ""
	}
	err := h.Generations.UpdateStatus(ctx, provider, taskID, status, url)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logger(ctx).Warn("journal update", zap.String("task_id", taskID), zap.Error(err))
	}
}
