// Package testutil holds request builders and assertions shared by the ledger
// HTTP tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "invitegate/pkg/domain-errors"
)

// ErrorBody is the error document rendered by httputil.WriteError.
type ErrorBody struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

// NewJSONRequest builds a request whose body is body encoded as JSON. A nil
// body sends no payload.
func NewJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err, "encode request body")
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func NewRequest(t *testing.T, method, path string) *http.Request {
	t.Helper()
	return httptest.NewRequest(method, path, nil)
}

// Serve runs req through h and returns the recorded response.
func Serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// DecodeJSON decodes the recorded body into a T.
func DecodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) *T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "decode response body: %s", rec.Body.String())
	return &out
}

func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	assert.Equal(t, status, rec.Code, "unexpected status, body: %s", rec.Body.String())
}

// AssertDomainError checks that the response carries status and the error
// document for code, and returns the decoded document.
func AssertDomainError(t *testing.T, rec *httptest.ResponseRecorder, status int, code dErrors.Code) ErrorBody {
	t.Helper()
	AssertStatus(t, rec, status)
	body := DecodeJSON[ErrorBody](t, rec)
	assert.Equal(t, string(code), body.Code, "unexpected error code")
	return *body
}

// AssertField checks one top-level field of a JSON object response.
func AssertField(t *testing.T, rec *httptest.ResponseRecorder, key string, want any) {
	t.Helper()
	fields := DecodeJSON[map[string]any](t, rec)
	assert.Equal(t, want, (*fields)[key], "field %q", key)
}
