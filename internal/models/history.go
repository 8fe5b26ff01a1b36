package models

import "time"

// SavedSession is a finished session kept in the history store.
type SavedSession struct {
	ID              string    `json:"id" db:"id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	OriginalText    string    `json:"original_text" db:"original_text"`
	Emotion         string    `json:"emotion" db:"emotion"`
	ConfidenceScore float64   `json:"confidence_score" db:"confidence_score"`
	Questions       []string  `json:"questions" db:"questions"`
	Answers         []Answer  `json:"answers" db:"answers"`
	Summary         string    `json:"summary" db:"summary"`
	DurationMs      int64     `json:"duration_ms" db:"duration_ms"`
}

// Duration returns how long the user spent in the session
func (s *SavedSession) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// SessionStats summarizes the saved sessions.
type SessionStats struct {
	TotalSessions   int     `json:"total_sessions"`
	WeekSessions    int     `json:"week_sessions"`
	MonthSessions   int     `json:"month_sessions"`
	TotalDurationMs int64   `json:"total_duration_ms"`
	AvgDurationMs   int64   `json:"avg_duration_ms"`
	CurrentStreak   int     `json:"current_streak"`
	MostActiveDay   string  `json:"most_active_day,omitempty"`
	AvgConfidence   float64 `json:"avg_confidence"`
}

// HistorySort selects the ordering of List.
type HistorySort string

const (
	SortNewest   HistorySort = "newest"
	SortOldest   HistorySort = "oldest"
	SortDuration HistorySort = "duration"
)

// HistoryFilter narrows a history listing. Zero values mean no restriction.
type HistoryFilter struct {
	Days  int
	Query string
	Sort  HistorySort
}
