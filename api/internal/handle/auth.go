package handle

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"content-proxy/api/internal/apierr"
	"content-proxy/api/internal/auth"
	"content-proxy/api/internal/store"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userView struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

type subscriptionView struct {
	Plan      string `json:"plan"`
	Status    string `json:"status"`
	EndDate   string `json:"end_date"`
	AutoRenew bool   `json:"auto_renew"`
}

// Auth routes ?action=register|login (POST) and profile (GET).
func (h *Handle) Auth(w http.ResponseWriter, r *http.Request) {
	if h.Users == nil {
		h.fail(w, r, apierr.NotConfigured("DATABASE_URL"))
		return
	}
	action := r.URL.Query().Get("action")
	switch {
	case r.Method == http.MethodPost && action == "register":
		h.register(w, r)
	case r.Method == http.MethodPost && action == "login":
		h.login(w, r)
	case r.Method == http.MethodGet && action == "profile":
		h.profile(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *Handle) register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeBody(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	email := auth.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || len(in.Password) < 6 {
		h.fail(w, r, apierr.Invalid("Invalid email or password (min 6 chars)"))
		return
	}

	ctx := r.Context()
	exists, err := h.Users.EmailExists(ctx, email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if exists {
		h.fail(w, r, apierr.New(http.StatusConflict, "Email already registered"))
		return
	}
	id, err := h.Users.Create(ctx, email, auth.HashPassword(in.Password), name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	logger(ctx).Info("user registered", zap.Int64("user_id", id))
	h.writeSession(w, store.User{ID: id, Email: email, Name: name})
}

func (h *Handle) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeBody(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	email := auth.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		h.fail(w, r, apierr.Invalid("Email and password required"))
		return
	}

	ctx := r.Context()
	u, err := h.Users.Authenticate(ctx, email, auth.HashPassword(in.Password))
	if errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, apierr.New(http.StatusUnauthorized, "Invalid email or password"))
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Users.TouchLogin(ctx, u.ID); err != nil {
		logger(ctx).Warn("touch last_login", zap.Int64("user_id", u.ID), zap.Error(err))
	}
	h.writeSession(w, u)
}

func (h *Handle) writeSession(w http.ResponseWriter, u store.User) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   h.Signer.Issue(u.ID, u.Email),
		"user":    userView{ID: u.ID, Email: u.Email, Name: u.Name},
	})
}

func (h *Handle) profile(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Signer.Verify(userToken(r))
	if err != nil {
		h.fail(w, r, apierr.New(http.StatusUnauthorized, "Invalid token"))
		return
	}
	p, err := h.Users.Profile(r.Context(), claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		h.fail(w, r, apierr.New(http.StatusNotFound, "User not found"))
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var sub *subscriptionView
	if s := p.Subscription; s != nil {
		sub = &subscriptionView{
			Plan:      s.Plan,
			Status:    s.Status,
			EndDate:   s.EndDate.Format(time.RFC3339),
			AutoRenew: s.AutoRenew,
		}
	}
	u := p.User
	writeJSON(w, http.StatusOK, map[string]any{
		"user": userView{
			ID:        u.ID,
			Email:     u.Email,
			Name:      u.Name,
			CreatedAt: u.CreatedAt.Format(time.RFC3339),
		},
		"subscription": sub,
	})
}
