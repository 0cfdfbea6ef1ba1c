package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// errorBodyTransport turns a successful status carrying an `error` object into
// a 400, so the client reports it as a provider error instead of a completion.
// Compatible proxies often answer errors with 200.
type errorBodyTransport struct {
	base http.RoundTripper
}

func (t *errorBodyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.ContentLength = int64(len(body))

	if hasErrorObject(body) {
		resp.StatusCode = http.StatusBadRequest
		resp.Status = fmt.Sprintf("%d %s", http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
	}
	return resp, nil
}

func hasErrorObject(body []byte) bool {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	trimmed := bytes.TrimSpace(envelope.Error)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// withErrorBodyDetection returns a copy of client whose transport checks
// successful bodies for an error object.
func withErrorBodyDetection(client *http.Client) *http.Client {
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &errorBodyTransport{base: base}
	return &wrapped
}
