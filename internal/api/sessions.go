package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	apperrors "therapy-connect/internal/common/errors"
	"therapy-connect/internal/common/validation"
	"therapy-connect/internal/history"
	"therapy-connect/internal/models"
	"therapy-connect/internal/notify"
)

var savedSessionSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["original_text", "summary"],
	"properties": {
		"original_text":    {"type": "string", "minLength": 1},
		"emotion":          {"type": "string"},
		"confidence_score": {"type": "number", "minimum": 0, "maximum": 1},
		"questions":        {"type": "array", "items": {"type": "string"}},
		"answers": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["question", "answer"],
				"properties": {
					"question": {"type": "string"},
					"answer":   {"type": ["integer", "string"]}
				}
			}
		},
		"summary":     {"type": "string", "minLength": 1},
		"duration_ms": {"type": "integer", "minimum": 0}
	}
}`)

var shareSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["email"],
	"properties": {"email": {"type": "string", "minLength": 3}}
}`)

const exportDateLayout = "2006-01-02"

// SaveSession stores a finished session in the history.
func (h *Handler) SaveSession(w http.ResponseWriter, r *http.Request) {
	body, err := h.readJSON(w, r, savedSessionSchema)
	if err != nil {
		h.errors.HandleRequestError(w, r, err)
		return
	}

	var saved models.SavedSession
	if err := json.Unmarshal(body, &saved); err != nil {
		h.errors.HandleRequestError(w, r, apperrors.NewInvalidRequestError("Invalid session.", err.Error()))
		return
	}
	for i, a := range saved.Answers {
		if !a.Answer.Valid() {
			h.errors.HandleRequestError(w, r, apperrors.NewInvalidRequestError(
				fmt.Sprintf("Answer %d must be a rating between %d and %d.", i+1, models.MinRating, models.MaxRating),
				fmt.Sprintf("got %d", a.Answer),
			))
			return
		}
	}
	saved.ID = ""
	saved.CreatedAt = h.now().UTC()

	if err := h.history.Save(r.Context(), &saved); err != nil {
		h.errors.HandleRequestError(w, r, historyError("save", "", err))
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// ListSessions supports ?days=N, ?q=text and ?sort=newest|oldest|duration.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	days, err := parseDays(q.Get("days"))
	if err != nil {
		h.errors.HandleRequestError(w, r, err)
		return
	}
	sort, err := history.ParseSort(q.Get("sort"))
	if err != nil {
		h.errors.HandleRequestError(w, r, apperrors.NewInvalidRequestError("Invalid sort order.", err.Error()))
		return
	}

	sessions, err := h.history.List(r.Context(), models.HistoryFilter{Days: days, Query: q.Get("q"), Sort: sort})
	if err != nil {
		h.errors.HandleRequestError(w, r, historyError("list", "", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	saved, err := h.history.Get(r.Context(), id)
	if err != nil {
		h.errors.HandleRequestError(w, r, historyError("get", id, err))
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.history.Delete(r.Context(), id); err != nil {
		h.errors.HandleRequestError(w, r, historyError("delete", id, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteAllSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.history.DeleteAll(r.Context())
	if err != nil {
		h.errors.HandleRequestError(w, r, historyError("delete_all", "", err))
		return
	}
	h.logger.Info("session history cleared", map[string]interface{}{"deleted": n})
	w.WriteHeader(http.StatusNoContent)
}

// ExportSessions downloads the whole history as a JSON file.
func (h *Handler) ExportSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.history.Export(r.Context())
	if err != nil {
		h.errors.HandleRequestError(w, r, historyError("export", "", err))
		return
	}

	filename := "therapy-connect-sessions-" + h.now().In(h.loc).Format(exportDateLayout) + ".json"
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	_ = enc.Encode(sessions)
}

func (h *Handler) SessionStats(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r.URL.Query().Get("days"))
	if err != nil {
		h.errors.HandleRequestError(w, r, err)
		return
	}

	stats, err := h.history.Stats(r.Context(), days, h.loc)
	if err != nil {
		h.errors.HandleRequestError(w, r, historyError("stats", "", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ShareSession emails a saved session to the given address.
func (h *Handler) ShareSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	body, err := h.readJSON(w, r, shareSchema)
	if err != nil {
		h.errors.HandleRequestError(w, r, err)
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		h.errors.HandleRequestError(w, r, apperrors.NewInvalidRequestError("Invalid request body.", err.Error()))
		return
	}

	saved, err := h.history.Get(r.Context(), id)
	if err != nil {
		h.errors.HandleRequestError(w, r, historyError("get", id, err))
		return
	}

	messageID, err := h.sharer.ShareSummary(r.Context(), req.Email, saved)
	if err != nil {
		if errors.Is(err, notify.ErrInvalidRecipient) {
			h.errors.HandleRequestError(w, r, apperrors.NewInvalidRequestError("Invalid email address.", err.Error()))
			return
		}
		h.errors.HandleRequestError(w, r, apperrors.NewNotificationSendFailedError("email", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message_id": messageID})
}

// readJSON reads a bounded JSON body and checks it against schema.
func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, schema *validation.Schema) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		return nil, bodyError(err)
	}
	if !json.Valid(body) {
		return nil, apperrors.NewInvalidRequestError("Invalid request body.", "malformed JSON")
	}
	if err := schema.ValidateBytes(body); err != nil {
		return nil, apperrors.NewInvalidRequestError("Invalid request body.", err.Error())
	}
	return body, nil
}

func parseDays(v string) (int, error) {
	if v == "" || v == "all" {
		return 0, nil
	}
	days, err := strconv.Atoi(v)
	if err != nil || days < 0 {
		return 0, apperrors.NewInvalidRequestError("days must be a non-negative integer.", v)
	}
	return days, nil
}

func historyError(op, id string, err error) error {
	switch {
	case errors.Is(err, history.ErrNotFound):
		return apperrors.NewSessionNotFoundError(id)
	default:
		return apperrors.NewDatabaseQueryFailedError(op, err)
	}
}
