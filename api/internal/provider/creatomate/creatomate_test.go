package creatomate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"content-proxy/api/internal/provider"
	"content-proxy/api/internal/task"
)

func newTestEngine(t *testing.T, h http.HandlerFunc) *Engine {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	e := New("ck", "tpl-1", "").WithBaseURL(srv.URL).WithHTTPClient(srv.Client())
	e.Poll.Interval = time.Millisecond
	return e
}

func TestGenerateVideo(t *testing.T) {
	var polls atomic.Int32
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ck", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/renders":
			var body struct {
				TemplateID    string            `json:"template_id"`
				Modifications map[string]string `json:"modifications"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "tpl-1", body.TemplateID)
			assert.Equal(t, "ocean", body.Modifications["Text"])
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`[{"id":"r1","status":"planned"}]`))
		case "/renders/r1":
			if polls.Add(1) == 1 {
				_, _ = w.Write([]byte(`{"id":"r1","status":"rendering"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"r1","status":"succeeded","url":"https://cdn/r1.mp4"}`))
		}
	})

	st, err := e.GenerateVideo(context.Background(), "ocean")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/r1.mp4", st.URL)
}

func TestRenderFailed(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/renders" {
			_, _ = w.Write([]byte(`[{"id":"r2"}]`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"failed","error_message":"template missing"}`))
	})

	_, err := e.GenerateVideo(context.Background(), "x")
	var fe *task.FailedError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "template missing", fe.Reason)
}

func TestMissingTemplate(t *testing.T) {
	_, err := New("ck", "", "").StartRender(context.Background(), "x")
	var ce *provider.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "CREATOMATE_TEMPLATE_ID", ce.Env)
}

func TestGenerateVideoWithoutURL(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/renders" {
			_, _ = w.Write([]byte(`[{"id":"r3"}]`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"r3","status":"succeeded"}`))
	})

	_, err := e.GenerateVideo(context.Background(), "ocean")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "succeeded without url")
}
