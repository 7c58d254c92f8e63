package handle

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-proxy/api/internal/auth"
	"content-proxy/api/internal/store"
)

type fakeUsers struct {
	users   map[string]store.User
	hashes  map[string]string
	touched []int64
	sub     *store.ActiveSubscription
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]store.User{}, hashes: map[string]string{}}
}

func (f *fakeUsers) EmailExists(_ context.Context, email string) (bool, error) {
	_, ok := f.users[email]
	return ok, nil
}

func (f *fakeUsers) Create(_ context.Context, email, hash, name string) (int64, error) {
	id := int64(len(f.users) + 1)
	f.users[email] = store.User{ID: id, Email: email, Name: name, CreatedAt: fixedNow}
	f.hashes[email] = hash
	return id, nil
}

func (f *fakeUsers) Authenticate(_ context.Context, email, hash string) (store.User, error) {
	u, ok := f.users[email]
	if !ok || f.hashes[email] != hash {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) TouchLogin(_ context.Context, id int64) error {
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeUsers) Profile(_ context.Context, id int64) (store.Profile, error) {
	for _, u := range f.users {
		if u.ID == id {
			return store.Profile{User: u, Subscription: f.sub}, nil
		}
	}
	return store.Profile{}, store.ErrNotFound
}

func TestAuthRegisterLoginProfile(t *testing.T) {
	users := newFakeUsers()
	h := newTestHandle(t, Deps{Users: users})

	rec := call(t, h, http.MethodPost, "/auth?action=register", `{"email":" Ann@Example.COM ","password":"secret1","name":" Ann "}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"id": float64(1), "email": "ann@example.com", "name": "Ann"}, body["user"])
	assert.Equal(t, auth.HashPassword("secret1"), users.hashes["ann@example.com"])

	rec = call(t, h, http.MethodPost, "/auth?action=register", `{"email":"ann@example.com","password":"secret1"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Email already registered", decode(t, rec)["error"])

	rec = call(t, h, http.MethodPost, "/auth?action=login", `{"email":"ann@example.com","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, h, http.MethodPost, "/auth?action=login", `{"email":"ANN@example.com","password":"secret1"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, []int64{1}, users.touched)

	users.sub = &store.ActiveSubscription{Plan: "pro", Status: "active", EndDate: fixedNow.Add(30 * 24 * time.Hour), AutoRenew: true}
	rec = call(t, h, http.MethodGet, "/auth?action=profile", "", map[string]string{"X-User-Token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, "ann@example.com", body["user"].(map[string]any)["email"])
	assert.Equal(t, map[string]any{
		"plan":       "pro",
		"status":     "active",
		"end_date":   "2026-03-31T12:00:00Z",
		"auto_renew": true,
	}, body["subscription"])
}

func TestAuthErrors(t *testing.T) {
	h := newTestHandle(t, Deps{Users: newFakeUsers()})

	rec := call(t, h, http.MethodPost, "/auth?action=register", `{"email":"a@b.c","password":"123"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid email or password (min 6 chars)", decode(t, rec)["error"])

	rec = call(t, h, http.MethodPost, "/auth?action=login", `{"email":"a@b.c"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email and password required", decode(t, rec)["error"])

	rec = call(t, h, http.MethodGet, "/auth?action=profile", "", map[string]string{"X-User-Token": "1:a@b.c:0:bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["error"])

	rec = call(t, h, http.MethodGet, "/auth?action=profile", "", map[string]string{"X-User-Token": h.Signer.Issue(99, "x@y.z")})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", decode(t, rec)["error"])

	rec = call(t, h, http.MethodGet, "/auth?action=login", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decode(t, rec)["error"])
}

func TestAuthWithoutDatabase(t *testing.T) {
	h := newTestHandle(t, Deps{})
	rec := call(t, h, http.MethodPost, "/auth?action=login", `{}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "DATABASE_URL не настроен", decode(t, rec)["error"])
}
