package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid JSON", body: `{"email": "a@x.com"}`},
		{name: "invalid JSON", body: `{invalid}`, wantErr: "invalid JSON"},
		{name: "empty body", body: ``, wantErr: "request body is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
			var dest map[string]string

			err := ParseJSON(req, &dest)

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, "a@x.com", dest["email"])
		})
	}
}

func TestParseJSON_TooLarge(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"`+strings.Repeat("a", 64)+`"}`))
	req.Body = http.MaxBytesReader(w, req.Body, 16)

	var dest map[string]string
	assert.ErrorContains(t, ParseJSON(req, &dest), "exceeds 16 bytes")
}

func TestParseJSONOrError(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`nope`))

	var dest map[string]string
	assert.False(t, ParseJSONOrError(w, req, &dest))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/users/abc", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "abc"})

	id, err := ParsePathString(req, "id")
	assert.NoError(t, err)
	assert.Equal(t, "abc", id)

	w := httptest.NewRecorder()
	_, ok := ParsePathStringOrError(w, req, "missing")
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		headers    map[string]string
		trustProxy bool
		want       string
	}{
		{name: "remote addr", remote: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "remote addr without port", remote: "10.0.0.1", want: "10.0.0.1"},
		{name: "forwarded ignored by default", remote: "10.0.0.1:5555", headers: map[string]string{"X-Forwarded-For": "1.2.3.4"}, want: "10.0.0.1"},
		{name: "forwarded first hop", remote: "10.0.0.1:5555", headers: map[string]string{"X-Forwarded-For": " 1.2.3.4 , 10.0.0.2"}, trustProxy: true, want: "1.2.3.4"},
		{name: "real ip", remote: "10.0.0.1:5555", headers: map[string]string{"X-Real-IP": "5.6.7.8"}, trustProxy: true, want: "5.6.7.8"},
		{name: "ipv6", remote: "[::1]:8080", want: "::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req, tt.trustProxy))
		})
	}
}
