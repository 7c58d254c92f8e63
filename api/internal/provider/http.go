package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"content-proxy/api/internal/metrics"
)

// MaxBody bounds responses read into memory; generated videos fit well below it.
var MaxBody int64 = 256 << 20

var ErrBodyTooLarge = errors.New("response body too large")

// ReadBody reads at most MaxBody bytes from r.
func ReadBody(r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > MaxBody {
		return nil, fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, MaxBody)
	}
	return raw, nil
}

// NewHTTPClient is the default client for provider engines.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// NewJSONRequest encodes body (if any) and sets the JSON content type.
func NewJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// Do sends req and returns the body. Status codes outside ok (2xx when ok is
// empty) come back as *Error.
func Do(c *http.Client, name, op string, req *http.Request, ok ...int) ([]byte, int, error) {
	start := time.Now()
	resp, err := c.Do(req)
	if err != nil {
		metrics.RecordProviderCall(name, op, 0, time.Since(start))
		return nil, 0, fmt.Errorf("%s %s: %w", name, op, err)
	}
	defer resp.Body.Close()
	metrics.RecordProviderCall(name, op, resp.StatusCode, time.Since(start))

	raw, err := ReadBody(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%s %s: read body: %w", name, op, err)
	}
	if !accepted(resp.StatusCode, ok) {
		return raw, resp.StatusCode, &Error{Provider: name, Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, resp.StatusCode, nil
}

func accepted(code int, ok []int) bool {
	if len(ok) == 0 {
		return code >= 200 && code < 300
	}
	for _, c := range ok {
		if c == code {
			return true
		}
	}
	return false
}

// Download fetches a generated asset.
func Download(ctx context.Context, c *http.Client, name, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	start := time.Now()
	resp, err := c.Do(req)
	if err != nil {
		metrics.RecordProviderCall(name, "download", 0, time.Since(start))
		return nil, "", fmt.Errorf("%s download: %w", name, err)
	}
	defer resp.Body.Close()
	metrics.RecordProviderCall(name, "download", resp.StatusCode, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", &Error{Provider: name, Op: "download", StatusCode: resp.StatusCode, Body: string(x)}
	}
	data, err := ReadBody(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%s download: %w", name, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
