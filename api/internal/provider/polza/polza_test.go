package polza

import (
	"context"
	"encoding/base64"
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
	e := New("key", srv.URL).WithHTTPClient(srv.Client())
	e.ImagePoll.Interval = time.Millisecond
	e.ImagePoll.Timeout = time.Second
	e.VideoPoll.Interval = time.Millisecond
	e.VideoPoll.Timeout = time.Second
	return e
}

func TestRequestID(t *testing.T) {
	assert.Equal(t, "req-123456789", RequestID([]byte(`{"requestId":"req-123456789","id":"other-id-value"}`)))
	assert.Equal(t, "abcdefghij", RequestID([]byte(`{"requestId":"short","id":"abcdefghij"}`)))
	assert.Equal(t, "task-000000001", RequestID([]byte(`{"id":"models/abc/xyz","task_id":"task-000000001"}`)))
	assert.Empty(t, RequestID([]byte(`{"id":12345678901}`)))
	assert.Empty(t, RequestID([]byte(`[]`)))
}

func TestGenerateText(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, TextModel, body["model"])
		assert.Equal(t, false, body["stream"])
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"привет"}}]}`))
	})

	res, err := e.GenerateText(context.Background(), provider.TextRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "привет", res.Text)
}

func TestGenerateImageWaitsAndRetries(t *testing.T) {
	var probes atomic.Int32
	png := base64.StdEncoding.EncodeToString([]byte("png"))
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/images/generations":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, ImageModel, body["model"])
			assert.Equal(t, "1024x1024", body["size"])
			_, _ = w.Write([]byte(`{"requestId":"img-request-1"}`))
		case "/images/img-request-1":
			switch probes.Add(1) {
			case 1:
				w.WriteHeader(http.StatusBadGateway)
			case 2:
				_, _ = w.Write([]byte(`{"status":"pending"}`))
			default:
				_, _ = w.Write([]byte(`{"status":"completed","data":[{"b64_json":"` + png + `"}]}`))
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	res, err := e.GenerateImage(context.Background(), provider.ImageRequest{Prompt: "cat"})
	require.NoError(t, err)
	assert.Equal(t, "png", string(res.Data))
	assert.Equal(t, int32(3), probes.Load())
}

func TestStatusDownloadsURL(t *testing.T) {
	var base string
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/videos/vid-request-1":
			_, _ = w.Write([]byte(`{"status":"done","url":"` + base + `/cdn/v.mp4"}`))
		case "/cdn/v.mp4":
			_, _ = w.Write([]byte("mp4"))
		}
	})
	base = e.BaseURL

	st, err := e.Status(context.Background(), KindVideo, "vid-request-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusSucceeded, st.Status)
	assert.Equal(t, "mp4", string(st.Data))
}

func TestStatusWithoutResult(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"completed","data":[{"other":1}]}`))
	})
	st, err := e.Status(context.Background(), KindImage, "img-request-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, st.Status)
	assert.Equal(t, ErrNoResult.Error(), st.Reason)
}

func TestWaitStopsOnEmptyResult(t *testing.T) {
	var probes atomic.Int32
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		_, _ = w.Write([]byte(`{"status":"completed","data":[]}`))
	})
	e.ImagePoll.Timeout = time.Minute

	start := time.Now()
	_, err := e.Wait(context.Background(), KindImage, "img-request-1")
	var fe *task.FailedError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Задача выполнена, но результат не найден в ответе.", fe.Reason)
	assert.NotErrorIs(t, err, task.ErrTimeout)
	assert.Equal(t, int32(1), probes.Load())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestStatusDownloadFailure(t *testing.T) {
	var base string
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/cdn/gone.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"completed","data":[{"url":"` + base + `/cdn/gone.png"}]}`))
	})
	base = e.BaseURL

	st, err := e.Status(context.Background(), KindImage, "img-request-1")
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, st.Status)
	assert.Contains(t, st.Reason, "не удалось получить результат")
}

func TestWaitFailed(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"failed","error":{"message":"nsfw"}}`))
	})
	_, err := e.Wait(context.Background(), KindVideo, "vid-request-1")
	var fe *task.FailedError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "задача провалена (статус: failed): nsfw", fe.Reason)
}

func TestWaitTimeout(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	})
	e.ImagePoll.Timeout = 20 * time.Millisecond
	_, err := e.Wait(context.Background(), KindImage, "img-request-1")
	assert.ErrorIs(t, err, task.ErrTimeout)
}

func TestStartWithoutID(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"short"}`))
	})
	_, err := e.Start(context.Background(), KindVideo, "x", "")
	assert.EqualError(t, err, "не удалось получить ID задачи от API")
}
