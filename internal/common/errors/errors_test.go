// internal/common/errors/errors_test.go
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Logger Implementation
// ==========================

type recordingLogger struct {
	warns  []string
	errors []string
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.errors = append(l.errors, msg)
}

// ==========================
// Mapping Tests
// ==========================

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeEmptyTranscript, http.StatusBadRequest},
		{ErrCodeInvalidRequest, http.StatusBadRequest},
		{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeSessionNotFound, http.StatusNotFound},
		{ErrCodeSessionAlreadySummarized, http.StatusConflict},
		{ErrCodeTranscriptionFailed, http.StatusInternalServerError},
		{ErrCodeClassificationFailed, http.StatusInternalServerError},
		{ErrCodeRetrievalFailed, http.StatusInternalServerError},
		{ErrCodeGenerationFailed, http.StatusInternalServerError},
		{ErrCodeGenerationTimeout, http.StatusGatewayTimeout},
		{ErrCodeNotificationSendFailed, http.StatusBadGateway},
		{ErrorCode("SOMETHING_NEW"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "COLLABORATOR", GetErrorCategory(ErrCodeTranscriptionFailed))
	assert.Equal(t, "COLLABORATOR", GetErrorCategory(ErrCodeGenerationTimeout))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeEmptyTranscript))
	assert.Equal(t, "SESSION", GetErrorCategory(ErrCodeSessionNotFound))
	assert.Equal(t, "STARTUP", GetErrorCategory(ErrCodeIndexNotFound))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatabaseQueryFailed))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestStandardError_UnwrapKeepsCause(t *testing.T) {
	root := stderrors.New("connection refused")
	err := NewTranscriptionFailedError(fmt.Errorf("asr call: %w", root))

	assert.True(t, stderrors.Is(err, root))
	assert.True(t, err.Retryable)
	assert.Equal(t, "asr call: connection refused", err.Details)
	assert.Equal(t, "StandardError[TRANSCRIPTION_FAILED]: Error during transcription", err.Error())
}

func TestAsStandardError(t *testing.T) {
	wrapped := fmt.Errorf("stage: %w", NewEmptyTranscriptError())
	assert.Equal(t, ErrCodeEmptyTranscript, AsStandardError(wrapped).Code)

	plain := AsStandardError(stderrors.New("nil pointer"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "nil pointer", plain.Details)
}

// ==========================
// Handler Tests
// ==========================

func TestErrorHandler_HandleRequestError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantDetail string
		wantWarn   bool
	}{
		{
			name:       "validation failure is logged as warning",
			err:        NewEmptyTranscriptError(),
			wantStatus: http.StatusBadRequest,
			wantCode:   "EMPTY_TRANSCRIPT",
			wantDetail: "Transcription resulted in empty text. Please try speaking again.",
			wantWarn:   true,
		},
		{
			name:       "collaborator failure hides cause",
			err:        NewClassificationFailedError(stderrors.New("tf-serving: 503 model not loaded")),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "CLASSIFICATION_FAILED",
			wantDetail: "Emotion classification failed",
		},
		{
			name:       "unknown error",
			err:        stderrors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantDetail: "Unexpected error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &recordingLogger{}
			h := NewErrorHandler(log)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/start_session", nil)
			h.HandleRequestError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantDetail, body.Detail)
			assert.NotContains(t, rec.Body.String(), "tf-serving")

			if tt.wantWarn {
				assert.Len(t, log.warns, 1)
				assert.Empty(t, log.errors)
			} else {
				assert.Len(t, log.errors, 1)
				assert.Empty(t, log.warns)
			}
		})
	}
}
