package handle

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"content-proxy/api/internal/metrics"
)

// Function is one deployable endpoint.
type Function struct {
	Name string
	// Methods are advertised to CORS preflights; OPTIONS is implied.
	Methods []string
	// Allow is enforced with 405 when non-empty.
	Allow       []string
	MethodError string
	Headers     string
	Timeout     time.Duration
	Handler     http.HandlerFunc
}

// Functions lists every endpoint in deployment order.
func (h *Handle) Functions() []Function {
	const (
		enMethod = "Method not allowed"
		ruMethod = "Метод не поддерживается"
	)
	post := []string{http.MethodPost}
	getPost := []string{http.MethodGet, http.MethodPost}
	return []Function{
		{Name: "ai-content", Methods: post, Allow: post, MethodError: enMethod,
			Headers: "Content-Type, X-User-Id", Timeout: 60 * time.Second, Handler: h.AIContent},
		{Name: "generate", Methods: post, Allow: post, MethodError: enMethod,
			Headers: "Content-Type", Timeout: 60 * time.Second, Handler: h.Generate},
		{Name: "ai-generate", Methods: getPost,
			Headers: "Content-Type, X-User-Id, X-Auth-Token, X-User-Token", Timeout: 300 * time.Second, Handler: h.AIGenerate},
		{Name: "polza-ai", Methods: getPost, Allow: post, MethodError: ruMethod,
			Headers: "Content-Type, X-User-Id", Timeout: 960 * time.Second, Handler: h.PolzaAI},
		{Name: "gen", Methods: post, Allow: post, MethodError: enMethod,
			Headers: "Content-Type", Timeout: 120 * time.Second, Handler: h.Gen},
		{Name: "generate-image", Methods: post, Allow: post, MethodError: enMethod,
			Headers: "Content-Type, X-User-Id", Timeout: 120 * time.Second, Handler: h.GenerateImage},
		{Name: "generate-video", Methods: post, Allow: post, MethodError: enMethod,
			Headers: "Content-Type, X-User-Id", Timeout: 330 * time.Second, Handler: h.GenerateVideo},
		{Name: "openai-chat", Methods: getPost, Allow: post, MethodError: ruMethod,
			Headers: "Content-Type, X-User-Id, X-Auth-Token", Timeout: 90 * time.Second, Handler: h.OpenAIChat},
		{Name: "auth", Methods: getPost,
			Headers: "Content-Type, X-User-Token", Timeout: 15 * time.Second, Handler: h.Auth},
		{Name: "payment", Methods: post,
			Headers: "Content-Type, X-User-Token", Timeout: 30 * time.Second, Handler: h.Payment},
		{Name: "yookassa", Methods: getPost, Allow: post, MethodError: enMethod,
			Headers: "Content-Type, X-User-Id", Timeout: 30 * time.Second, Handler: h.YooKassa},
		{Name: "send-message", Methods: post, Allow: post, MethodError: enMethod,
			Headers: "Content-Type", Timeout: 15 * time.Second, Handler: h.SendMessage},
	}
}

func (h *Handle) Function(name string) (Function, bool) {
	for _, f := range h.Functions() {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// Wrap adds CORS, method checks, the request deadline, a scoped logger and metrics.
func (f Function) Wrap(log *zap.Logger) http.Handler {
	methods := strings.Join(append(slices.Clone(f.Methods), http.MethodOptions), ", ")
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			hd := w.Header()
			hd.Set("Access-Control-Allow-Origin", "*")
			hd.Set("Access-Control-Allow-Methods", methods)
			hd.Set("Access-Control-Allow-Headers", f.Headers)
			hd.Set("Access-Control-Max-Age", "86400")
			w.WriteHeader(http.StatusOK)
			return
		}
		if len(f.Allow) > 0 && !slices.Contains(f.Allow, r.Method) {
			writeError(w, http.StatusMethodNotAllowed, f.MethodError)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestDeadline(r, f.Timeout))
		defer cancel()

		id := requestID(r)
		l := log.With(
			zap.String("function", f.Name),
			zap.String("request_id", id),
			zap.String("remote_ip", clientIP(r)),
		)
		ctx = context.WithValue(ctx, loggerKey, l)
		ctx = context.WithValue(ctx, requestIDKey, id)

		start := time.Now()
		f.Handler(w, r.WithContext(ctx))
		l.Debug("handled", zap.String("method", r.Method), zap.Duration("took", time.Since(start)))
	})
	return metrics.InstrumentFunction(f.Name, inner)
}
