package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MinRating = 1
	MaxRating = 10
)

// Rating is a 1-10 answer value. It decodes from a JSON number or a numeric string.
type Rating int

func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}

	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("rating must be a number: %q", string(data))
	}
	if f != float64(int(f)) {
		return fmt.Errorf("rating must be a whole number: %v", f)
	}
	*r = Rating(int(f))
	return nil
}

// Valid reports whether the rating is inside the 1-10 scale.
func (r Rating) Valid() bool {
	return r >= MinRating && r <= MaxRating
}

// Answer is one rated reply to a clarifying question.
type Answer struct {
	Question string `json:"question"`
	Answer   Rating `json:"answer"`
}

type SessionState string

const (
	SessionAwaitingAnswers SessionState = "awaiting_answers"
	SessionSummarized      SessionState = "summarized"
)

// SessionRecord is the server-side session token kept in Redis between the two requests.
type SessionRecord struct {
	ID                string        `json:"id"`
	State             SessionState  `json:"state"`
	OriginalText      string        `json:"original_text"`
	EmotionData       EmotionResult `json:"emotion_data"`
	Questions         []string      `json:"questions"`
	QuestionsFallback bool          `json:"questions_fallback"`
	CreatedAt         time.Time     `json:"created_at"`
	SummarizedAt      *time.Time    `json:"summarized_at,omitempty"`
}

// IsSummarized checks whether the session already produced its summary
func (s *SessionRecord) IsSummarized() bool {
	return s.State == SessionSummarized
}

// MarkSummarized moves the record to its final state
func (s *SessionRecord) MarkSummarized(at time.Time) {
	s.State = SessionSummarized
	s.SummarizedAt = &at
}
