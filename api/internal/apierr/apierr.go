// Package apierr maps internal and upstream failures to an HTTP status and
// the message shown to the client.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/task"
	"content-proxy/api/internal/util"
)

// Error is an error that already knows its HTTP answer.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, msg string) *Error { return &Error{Status: status, Message: msg} }

// Invalid is a 400 validation failure.
func Invalid(msg string) *Error { return New(http.StatusBadRequest, msg) }

// NotConfigured reports a credential missing from the environment.
func NotConfigured(env string) *Error {
	return New(http.StatusInternalServerError, env+" не настроен")
}

// Translate resolves err into (status, message).
func Translate(err error) (int, string) {
	if err == nil {
		return http.StatusOK, ""
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status, ae.Message
	}

	var fe *task.FailedError
	if errors.As(err, &fe) {
		reason := fe.Reason
		if reason == "" {
			reason = "неизвестная ошибка"
		}
		return http.StatusBadGateway, "Генерация не удалась: " + reason
	}

	if errors.Is(err, task.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "Таймаут генерации"
	}

	var pe *provider.Error
	if errors.As(err, &pe) {
		return translateProvider(pe)
	}

	var ce *provider.ConfigError
	if errors.As(err, &ce) {
		return http.StatusInternalServerError, ce.Env + " не настроен"
	}

	return http.StatusInternalServerError, err.Error()
}

func translateProvider(pe *provider.Error) (int, string) {
	p := pe.Provider
	switch {
	case pe.StatusCode == http.StatusUnauthorized || pe.StatusCode == http.StatusForbidden:
		return http.StatusBadGateway, "Неверный API-ключ провайдера " + p
	case pe.StatusCode == http.StatusPaymentRequired:
		return http.StatusBadGateway, "Недостаточно средств на балансе " + p
	case pe.StatusCode == http.StatusTooManyRequests:
		return http.StatusTooManyRequests, "Превышен лимит запросов к " + p + ", попробуйте позже"
	case pe.StatusCode >= 400 && pe.StatusCode < 500:
		return http.StatusBadRequest, "Запрос отклонён " + p + ": " + util.Clip(strings.TrimSpace(pe.Body), 200)
	default:
		return http.StatusBadGateway, "Сервис " + p + " временно недоступен"
	}
}
