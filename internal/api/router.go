// Package api exposes the session service over HTTP.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "therapy-connect/internal/common/errors"
	"therapy-connect/internal/common/logger"
	"therapy-connect/internal/common/observability"
	"therapy-connect/internal/models"
	"therapy-connect/internal/session"
)

const defaultMaxUploadBytes = 25 << 20

// SessionService runs the two session steps.
type SessionService interface {
	StartSession(ctx context.Context, audio io.Reader, filename string) (*session.StartResult, error)
	GetSummary(ctx context.Context, req *session.SummaryRequest) (*session.SummaryResult, error)
}

// HistoryStore persists finished sessions.
type HistoryStore interface {
	Save(ctx context.Context, s *models.SavedSession) error
	Get(ctx context.Context, id string) (*models.SavedSession, error)
	List(ctx context.Context, filter models.HistoryFilter) ([]models.SavedSession, error)
	Export(ctx context.Context) ([]models.SavedSession, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	Stats(ctx context.Context, days int, loc *time.Location) (models.SessionStats, error)
}

// Sharer emails a saved session.
type Sharer interface {
	ShareSummary(ctx context.Context, to string, s *models.SavedSession) (string, error)
}

// ReadinessCheck is one dependency probed by /ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Options struct {
	Sessions       SessionService
	History        HistoryStore
	Sharer         Sharer
	Checks         []ReadinessCheck
	Observability  *observability.Observability
	Logger         logger.Logger
	MaxUploadBytes int64
	AllowedOrigins []string
	Location       *time.Location
	Now            func() time.Time
}

type Handler struct {
	sessions       SessionService
	history        HistoryStore
	sharer         Sharer
	checks         []ReadinessCheck
	obs            *observability.Observability
	logger         logger.Logger
	errors         *apperrors.ErrorHandler
	maxUploadBytes int64
	loc            *time.Location
	now            func() time.Time
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.With(map[string]interface{}{"component": "api"})

	h := &Handler{
		sessions:       opts.Sessions,
		history:        opts.History,
		sharer:         opts.Sharer,
		checks:         opts.Checks,
		obs:            opts.Observability,
		logger:         log,
		errors:         apperrors.NewErrorHandler(log),
		maxUploadBytes: opts.MaxUploadBytes,
		loc:            opts.Location,
		now:            opts.Now,
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = defaultMaxUploadBytes
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	if h.now == nil {
		h.now = time.Now
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /start_session", h.StartSession)
	mux.HandleFunc("POST /get_summary", h.GetSummary)

	if h.history != nil {
		mux.HandleFunc("POST /sessions", h.SaveSession)
		mux.HandleFunc("GET /sessions", h.ListSessions)
		mux.HandleFunc("DELETE /sessions", h.DeleteAllSessions)
		mux.HandleFunc("GET /sessions/export", h.ExportSessions)
		mux.HandleFunc("GET /sessions/stats", h.SessionStats)
		mux.HandleFunc("GET /sessions/{id}", h.GetSession)
		mux.HandleFunc("DELETE /sessions/{id}", h.DeleteSession)
		if h.sharer != nil {
			mux.HandleFunc("POST /sessions/{id}/share", h.ShareSession)
		}
	}

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	return withCORS(opts.AllowedOrigins, h.withRequestLogging(mux))
}
