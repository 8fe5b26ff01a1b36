package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	apperrors "therapy-connect/internal/common/errors"
	"therapy-connect/internal/session"
)

const uploadField = "file"

// StartSession streams the uploaded audio into the session pipeline.
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	part, err := audioPart(r)
	if err != nil {
		h.errors.HandleRequestError(w, r, err)
		return
	}
	defer part.Close()

	result, err := h.sessions.StartSession(r.Context(), part, part.FileName())
	if err != nil {
		h.errors.HandleRequestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// audioPart returns the first multipart part named "file" without buffering the body.
func audioPart(r *http.Request) (*multipart.Part, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, apperrors.NewInvalidRequestError("Expected a multipart form with an audio file.", err.Error())
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, apperrors.NewInvalidRequestError("No audio file provided.", "missing form field \""+uploadField+"\"")
		}
		if err != nil {
			return nil, bodyError(err)
		}
		if part.FormName() == uploadField && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// GetSummary turns the user's ratings into the closing summary.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var req session.SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errors.HandleRequestError(w, r, bodyError(err))
		return
	}

	result, err := h.sessions.GetSummary(r.Context(), &req)
	if err != nil {
		h.errors.HandleRequestError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   h.now().UTC(),
	})
}

// Ready probes every configured dependency and reports 503 if any fails.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for _, c := range h.checks {
		if err := c.Check(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			checks[c.Name] = err.Error()
			h.logger.Warn("readiness check failed", map[string]interface{}{
				"check": c.Name,
				"error": err.Error(),
			})
			continue
		}
		checks[c.Name] = "ok"
	}

	body := map[string]interface{}{"status": "ready", "checks": checks}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	writeJSON(w, status, body)
}

// bodyError maps a request body read failure onto a client error.
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.NewPayloadTooLargeError(tooLarge.Limit)
	}
	return apperrors.NewInvalidRequestError("Invalid request body.", err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
