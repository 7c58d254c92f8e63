package handle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"content-proxy/api/internal/apierr"
)

const maxBodyBytes = 4 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// fail translates err and writes {"error": msg}.
func (h *Handle) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := apierr.Translate(err)
	logFailure(r.Context(), code, err)
	writeError(w, code, msg)
}

func logFailure(ctx context.Context, code int, err error) {
	l := logger(ctx)
	if code >= 500 {
		l.Error("request failed", zap.Int("status", code), zap.Error(err))
		return
	}
	l.Warn("request rejected", zap.Int("status", code), zap.Error(err))
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return apierr.Invalid("bad body: " + err.Error())
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apierr.Invalid("bad json: " + err.Error())
	}
	return nil
}

// requestDeadline is def unless X-Request-Timeout or ?timeoutSec= ask for another value in seconds.
func requestDeadline(r *http.Request, def time.Duration) time.Duration {
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			return time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return def
}

// clientIP prefers the API Gateway source IP, then the connection address.
func clientIP(r *http.Request) string {
	if gw, ok := core.GetAPIGatewayContextFromContext(r.Context()); ok && gw.Identity.SourceIP != "" {
		return gw.Identity.SourceIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func requestID(r *http.Request) string {
	ctx := r.Context()
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	if gw, ok := core.GetAPIGatewayContextFromContext(ctx); ok && gw.RequestID != "" {
		return gw.RequestID
	}
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
)

func logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

func reqID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func userToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Token"))
}
