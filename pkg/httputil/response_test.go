package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]string{"message": "success"})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"message":"success"}`, w.Body.String())
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w http.ResponseWriter)
		code    int
		message string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "email is required") }, http.StatusBadRequest, "email is required"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "authentication required") }, http.StatusUnauthorized, "authentication required"},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "admin access required") }, http.StatusForbidden, "admin access required"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "account not found") }, http.StatusNotFound, "account not found"},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "email already in use") }, http.StatusConflict, "email already in use"},
		{"too many", func(w http.ResponseWriter) { WriteTooManyRequests(w, "too many requests") }, http.StatusTooManyRequests, "too many requests"},
		{"internal", func(w http.ResponseWriter) { WriteInternalError(w) }, http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assert.Equal(t, tt.code, w.Code)
			assert.JSONEq(t, `{"error":"`+tt.message+`"}`, w.Body.String())
		})
	}
}

func TestWriteMessageAndCreated(t *testing.T) {
	w := httptest.NewRecorder()
	WriteMessage(w, http.StatusOK, "logged out")
	assert.JSONEq(t, `{"message":"logged out"}`, w.Body.String())

	w = httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, map[string]string{"id": "1"}))
	assert.Equal(t, http.StatusCreated, w.Code)
}
