// Package testing provides test utilities for the API package.
package testing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// TestServer runs a router over httptest and issues requests against
// it. The server closes with the test.
type TestServer struct {
	*httptest.Server
	t *testing.T
}

// NewTestServer starts a test server for the given router.
func NewTestServer(t *testing.T, router chi.Router) *TestServer {
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return &TestServer{Server: ts, t: t}
}

// MakeRequest issues a request against the test server. A nil body
// sends no payload; strings and byte slices are sent as-is; anything
// else is marshaled to JSON.
func (ts *TestServer) MakeRequest(method, path string, body any) *http.Response {
	return ts.MakeRequestWithHeaders(method, path, body, nil)
}

// MakeRequestWithHeaders issues a request with extra headers set.
func (ts *TestServer) MakeRequestWithHeaders(method, path string, body any, headers map[string]string) *http.Response {
	ts.t.Helper()

	var reqBody io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reqBody = bytes.NewReader([]byte(b))
		case []byte:
			reqBody = bytes.NewReader(b)
		case json.RawMessage:
			reqBody = bytes.NewReader(b)
		default:
			payload, err := json.Marshal(body)
			require.NoError(ts.t, err, "marshal request body")
			reqBody = bytes.NewReader(payload)
		}
	}

	req, err := http.NewRequestWithContext(context.Background(), method, ts.URL+path, reqBody)
	require.NoError(ts.t, err, "build request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(ts.t, err, "execute request")
	return resp
}

// ErrorResponse mirrors the API's error envelope: a message, optional
// per-field input details, and optional node-scoped findings.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
	Errors  []struct {
		NodeID  string `json:"node_id,omitempty"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// AssertStatus asserts the response status code.
func AssertStatus(t *testing.T, resp *http.Response, expectedCode int) {
	t.Helper()
	require.Equal(t, expectedCode, resp.StatusCode, "unexpected status code")
}

// AssertContentType asserts the response Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expectedType string) {
	t.Helper()
	require.Contains(t, resp.Header.Get("Content-Type"), expectedType, "unexpected content type")
}

// ReadBody drains the response body and returns it as a string.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "read response body")
	return string(body)
}

// AssertJSON unmarshals the response body into v, failing the test
// with the raw body on a decode error.
func AssertJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	body := ReadBody(t, resp)
	require.NoError(t, json.Unmarshal([]byte(body), v), "unmarshal response: %s", body)
}

// AssertJSONError asserts that the response carries the expected
// top-level error message.
func AssertJSONError(t *testing.T, resp *http.Response, expectedMessage string) {
	t.Helper()

	var errResp ErrorResponse
	AssertJSON(t, resp, &errResp)
	require.Equal(t, expectedMessage, errResp.Error, "unexpected error message")
}
