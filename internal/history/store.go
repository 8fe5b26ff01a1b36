// Package history stores finished sessions in PostgreSQL and derives usage statistics.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"therapy-connect/internal/models"
)

var (
	ErrNotFound    = errors.New("SESSION_NOT_FOUND")
	ErrQueryFailed = errors.New("DATABASE_QUERY_FAILED")
)

const selectColumns = `SELECT id, created_at, original_text, emotion, confidence_score, questions, answers, summary, duration_ms FROM saved_sessions`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsureSchema creates the history table and its index when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema, err := LoadSchema(PostgresSchemaName)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: apply schema: %v", ErrQueryFailed, err)
	}
	return nil
}

// Save inserts a new session, assigning its id and creation time.
func (s *Store) Save(ctx context.Context, session *models.SavedSession) error {
	session.ID = uuid.NewString()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now().UTC()
	}
	if session.Questions == nil {
		session.Questions = []string{}
	}
	if session.Answers == nil {
		session.Answers = []models.Answer{}
	}

	questions, err := json.Marshal(session.Questions)
	if err != nil {
		return fmt.Errorf("%w: encode questions: %v", ErrQueryFailed, err)
	}
	answers, err := json.Marshal(session.Answers)
	if err != nil {
		return fmt.Errorf("%w: encode answers: %v", ErrQueryFailed, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO saved_sessions (id, created_at, original_text, emotion, confidence_score, questions, answers, summary, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		session.ID, session.CreatedAt, session.OriginalText, session.Emotion, session.ConfidenceScore,
		questions, answers, session.Summary, session.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrQueryFailed, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.SavedSession, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get: %v", ErrQueryFailed, err)
	}
	return session, nil
}

// List returns sessions matching filter. The default order is newest first.
func (s *Store) List(ctx context.Context, filter models.HistoryFilter) ([]models.SavedSession, error) {
	query, args := buildListQuery(filter, s.now())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	sessions := []models.SavedSession{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrQueryFailed, err)
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list: %v", ErrQueryFailed, err)
	}
	return sessions, nil
}

// Export returns every saved session, newest first.
func (s *Store) Export(ctx context.Context) ([]models.SavedSession, error) {
	return s.List(ctx, models.HistoryFilter{Sort: models.SortNewest})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete: %v", ErrQueryFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: delete: %v", ErrQueryFailed, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll clears the history and reports how many sessions were removed.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_sessions`)
	if err != nil {
		return 0, fmt.Errorf("%w: delete all: %v", ErrQueryFailed, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Stats computes statistics over the sessions of the last days days, or all of them when days is 0.
func (s *Store) Stats(ctx context.Context, days int, loc *time.Location) (models.SessionStats, error) {
	sessions, err := s.List(ctx, models.HistoryFilter{Days: days})
	if err != nil {
		return models.SessionStats{}, err
	}
	return ComputeStats(sessions, s.now(), loc), nil
}

// ParseSort maps a query-string value onto a sort order. Empty means newest.
func ParseSort(v string) (models.HistorySort, error) {
	switch models.HistorySort(v) {
	case "", models.SortNewest:
		return models.SortNewest, nil
	case models.SortOldest:
		return models.SortOldest, nil
	case models.SortDuration:
		return models.SortDuration, nil
	default:
		return "", fmt.Errorf("unknown sort %q", v)
	}
}

func buildListQuery(filter models.HistoryFilter, now time.Time) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)

	if filter.Days > 0 {
		args = append(args, now.Add(-time.Duration(filter.Days)*24*time.Hour).UTC())
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		where = append(where, fmt.Sprintf("(summary ILIKE $%d OR original_text ILIKE $%d)", len(args), len(args)))
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	switch filter.Sort {
	case models.SortOldest:
		query += " ORDER BY created_at ASC"
	case models.SortDuration:
		query += " ORDER BY duration_ms DESC, created_at DESC"
	default:
		query += " ORDER BY created_at DESC"
	}
	return query, args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*models.SavedSession, error) {
	var (
		session   models.SavedSession
		questions []byte
		answers   []byte
	)
	err := row.Scan(
		&session.ID, &session.CreatedAt, &session.OriginalText, &session.Emotion, &session.ConfidenceScore,
		&questions, &answers, &session.Summary, &session.DurationMs,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &session.Questions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &session.Answers); err != nil {
		return nil, err
	}
	return &session, nil
}
