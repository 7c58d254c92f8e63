package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeText struct {
	name string
	text string
	err  error
}

func (f fakeText) Name() string { return f.name }
func (f fakeText) GenerateText(context.Context, TextRequest) (TextResult, error) {
	return TextResult{Text: f.text}, f.err
}

type fakeImage struct {
	name string
	res  ImageResult
	err  error
}

func (f fakeImage) Name() string { return f.name }
func (f fakeImage) GenerateImage(context.Context, ImageRequest) (ImageResult, error) {
	return f.res, f.err
}

func TestFirstTextFallsBack(t *testing.T) {
	log := zaptest.NewLogger(t)
	res, name, err := FirstText(context.Background(), log, TextRequest{Prompt: "hi"},
		fakeText{name: "openai", err: &Error{Provider: "openai", StatusCode: 500}},
		fakeText{name: "gemini", text: "  "},
		fakeText{name: "polza", text: "answer"},
	)
	require.NoError(t, err)
	assert.Equal(t, "polza", name)
	assert.Equal(t, "answer", res.Text)
}

func TestFirstTextAllFail(t *testing.T) {
	log := zaptest.NewLogger(t)
	e1 := &Error{Provider: "openai", StatusCode: 401}
	e2 := errors.New("gemini down")
	_, _, err := FirstText(context.Background(), log, TextRequest{}, fakeText{name: "openai", err: e1}, fakeText{name: "gemini", err: e2})
	require.Error(t, err)
	assert.ErrorIs(t, err, e2)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 401, pe.StatusCode)

	_, _, err = FirstText(context.Background(), log, TextRequest{})
	assert.EqualError(t, err, "no text provider configured")
}

func TestFirstImage(t *testing.T) {
	log := zaptest.NewLogger(t)
	res, name, err := FirstImage(context.Background(), log, ImageRequest{Prompt: "cat"},
		fakeImage{name: "stability", err: errors.New("boom")},
		fakeImage{name: "segmind", res: ImageResult{Data: []byte{0xFF, 0xD8, 0xFF}}},
	)
	require.NoError(t, err)
	assert.Equal(t, "segmind", name)
	assert.Equal(t, "data:image/jpeg;base64,/9j/", res.DataURL())
}

func TestImageResultDataURLPrefersURL(t *testing.T) {
	assert.Equal(t, "https://x/y.png", ImageResult{URL: "https://x/y.png"}.DataURL())
}

func TestDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"1"}`))
		default:
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`no money`))
		}
	}))
	defer srv.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodPost, srv.URL+"/ok", map[string]string{"a": "b"})
	require.NoError(t, err)
	body, code, err := Do(srv.Client(), "unit", "create", req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, code)
	assert.JSONEq(t, `{"id":"1"}`, string(body))

	req, _ = NewJSONRequest(context.Background(), http.MethodGet, srv.URL+"/bad", nil)
	_, code, err = Do(srv.Client(), "unit", "status", req)
	assert.Equal(t, http.StatusPaymentRequired, code)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "unit status 402: no money", pe.Error())

	req, _ = NewJSONRequest(context.Background(), http.MethodPost, srv.URL+"/ok", nil)
	_, _, err = Do(srv.Client(), "unit", "create", req, http.StatusOK)
	require.Error(t, err, "201 is rejected when only 200 is accepted")
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	data, ct, err := Download(context.Background(), srv.Client(), "unit", srv.URL+"/img.png")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", ct)

	_, _, err = Download(context.Background(), srv.Client(), "unit", srv.URL+"/missing")
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusNotFound, pe.StatusCode)
}

func TestReadBodyLimit(t *testing.T) {
	old := MaxBody
	MaxBody = 4
	t.Cleanup(func() { MaxBody = old })

	raw, err := ReadBody(strings.NewReader("abcd"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(raw))

	_, err = ReadBody(strings.NewReader("abcde"))
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}
