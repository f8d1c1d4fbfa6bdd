package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestErrorHandler_AppError(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/courses/CMPUT%20999/prerequisites", nil)
	req.Header.Set("X-Request-ID", "req-1")

	handler.Handle(rec, req, NewUnknownCourseError("CMPUT 999"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.True(t, resp.Error)
	assert.Equal(t, string(ErrorTypeUnknownCourse), resp.Type)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "CMPUT 999", resp.Details["course_code"])
}

func TestErrorHandler_GenericErrorHidesInternals(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", nil)

	handler.Handle(rec, req, errors.New("pgx: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, string(ErrorTypeInternal), resp.Type)
	assert.Equal(t, "An internal error occurred", resp.Message)
	assert.NotContains(t, rec.Body.String(), "pgx")
}

func TestErrorHandler_DebugModeExposesDetail(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop(), true)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", nil)

	handler.Handle(rec, req, errors.New("pgx: connection refused"))

	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, "pgx: connection refused", resp.Message)
}

func TestErrorHandler_Middleware_RecoversPanics(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)

	wrapped := handler.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, string(ErrorTypeInternal), resp.Type)
}
