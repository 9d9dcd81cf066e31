package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationError(rec, "too short", "review_text")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Type)
	assert.Equal(t, map[string]interface{}{"field": "review_text", "message": "too short"}, resp.Error.Details)
}

func TestMiddlewareChainAddsRequestIDAndRecovers(t *testing.T) {
	h := ResponseMiddleware(RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetRequestID(r))
		panic(errors.New("kaboom"))
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	resp := decode(t, rec)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.RequestID)
	assert.Equal(t, "kaboom", resp.Error.Details)
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := ResponseMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Success(w, nil, "ok")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", decode(t, rec).RequestID)
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/feedback", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, called)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
