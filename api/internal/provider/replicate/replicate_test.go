package replicate

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
	e := New("r8_token").WithBaseURL(srv.URL).WithHTTPClient(srv.Client())
	e.Poll.Interval = time.Millisecond
	return e
}

func TestGenerateVideo(t *testing.T) {
	var gets atomic.Int32
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token r8_token", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/predictions":
			var body struct {
				Version string         `json:"version"`
				Input   map[string]any `json:"input"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, StableVideoDiffusion, body.Version)
			assert.Equal(t, "https://still/1.png", body.Input["input_image"])
			assert.EqualValues(t, 127, body.Input["motion_bucket_id"])
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p1","status":"starting"}`))
		case r.URL.Path == "/predictions/p1":
			if gets.Add(1) < 3 {
				_, _ = w.Write([]byte(`{"id":"p1","status":"processing"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":"https://out/v.mp4"}`))
		}
	})

	st, err := e.GenerateVideo(context.Background(), "sunset", "https://still/1.png")
	require.NoError(t, err)
	assert.Equal(t, "https://out/v.mp4", st.URL)
	assert.Equal(t, "p1", st.ID)
}

func TestPredictionArrayOutputAndFailure(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/predictions/arr":
			_, _ = w.Write([]byte(`{"status":"succeeded","output":["https://out/1.png","https://out/2.png"]}`))
		case "/predictions/bad":
			_, _ = w.Write([]byte(`{"status":"failed","error":"CUDA out of memory"}`))
		}
	})

	st, err := e.Prediction(context.Background(), "arr")
	require.NoError(t, err)
	assert.Equal(t, "https://out/1.png", st.URL)

	st, err = e.Prediction(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, st.Status)
	assert.Equal(t, "CUDA out of memory", st.Reason)
}

func TestGenerateVideoAttemptBudget(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	})
	e.Poll.MaxAttempts = 3

	_, err := e.GenerateVideo(context.Background(), "x", "https://still")
	assert.ErrorIs(t, err, task.ErrTimeout)
}

func TestCreatePredictionRejected(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"detail":"billing"}`))
	})
	_, err := e.CreatePrediction(context.Background(), "v", nil)
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusPaymentRequired, pe.StatusCode)
}
