package handle

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"content-proxy/api/internal/notify"
)

const (
	maxNameLen    = 100
	maxEmailLen   = 100
	maxMessageLen = 2000
)

type contactRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Message       string `json:"message"`
	Captcha       string `json:"captcha"`
	CaptchaAnswer string `json:"captchaAnswer"`
}

// SendMessage forwards the contact form to the Telegram chat.
func (h *Handle) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.Limiter != nil {
		ip := clientIP(r)
		ok, err := h.Limiter.Allow(ctx, "send-message:"+ip)
		if err != nil {
			logger(ctx).Warn("rate limiter unavailable, letting request through", zap.Error(err))
		} else if !ok {
			writeError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}
	}
	if h.Telegram == nil || !h.Telegram.Configured() {
		writeError(w, http.StatusInternalServerError, "Telegram credentials not configured")
		return
	}

	var in contactRequest
	if err := decodeBody(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	message := strings.TrimSpace(in.Message)
	captcha := strings.TrimSpace(in.Captcha)
	answer := strings.TrimSpace(in.CaptchaAnswer)

	switch {
	case name == "" || email == "" || message == "":
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	case captcha == "" || answer == "":
		writeError(w, http.StatusBadRequest, "Captcha is required")
		return
	case !captchaValid(captcha, answer):
		writeError(w, http.StatusBadRequest, "Invalid captcha")
		return
	case utf8.RuneCountInString(name) > maxNameLen ||
		utf8.RuneCountInString(email) > maxEmailLen ||
		utf8.RuneCountInString(message) > maxMessageLen:
		writeError(w, http.StatusBadRequest, "Input too long")
		return
	}

	text := notify.FormatContact(notify.Contact{Name: name, Email: email, Message: message})
	if err := h.Telegram.Send(ctx, text); err != nil {
		logger(ctx).Error("telegram send", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to send message: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Message sent successfully"})
}

// captchaValid checks captcha == hex(sha256(answer)).
func captchaValid(captcha, answer string) bool {
	sum := sha256.Sum256([]byte(answer))
	return hex.EncodeToString(sum[:]) == captcha
}
