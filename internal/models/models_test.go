package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRating_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Rating
		wantErr bool
	}{
		{name: "number", input: `7`, want: 7},
		{name: "numeric string", input: `"8"`, want: 8},
		{name: "padded string", input: `" 3 "`, want: 3},
		{name: "float with zero fraction", input: `5.0`, want: 5},
		{name: "fractional", input: `5.5`, wantErr: true},
		{name: "word", input: `"high"`, wantErr: true},
		{name: "null", input: `null`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Rating
			err := json.Unmarshal([]byte(tt.input), &r)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r)
		})
	}
}

func TestRating_Valid(t *testing.T) {
	assert.False(t, Rating(0).Valid())
	assert.True(t, Rating(1).Valid())
	assert.True(t, Rating(10).Valid())
	assert.False(t, Rating(11).Valid())
}

func TestAnswer_DecodesSliderString(t *testing.T) {
	var answers []Answer
	require.NoError(t, json.Unmarshal([]byte(`[{"question":"Q1","answer":"8"},{"question":"Q2","answer":3}]`), &answers))
	assert.Equal(t, []Answer{{Question: "Q1", Answer: 8}, {Question: "Q2", Answer: 3}}, answers)

	out, err := json.Marshal(answers[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"question":"Q1","answer":8}`, string(out))
}

func TestSessionRecord_MarkSummarized(t *testing.T) {
	rec := &SessionRecord{ID: "abc", State: SessionAwaitingAnswers}
	assert.False(t, rec.IsSummarized())

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	rec.MarkSummarized(at)
	assert.True(t, rec.IsSummarized())
	assert.Equal(t, at, *rec.SummarizedAt)
}

func TestEmotionResult_JSONShape(t *testing.T) {
	out, err := json.Marshal(EmotionResult{Emotion: "joy", ConfidenceScore: 0.9, AllScores: map[string]float64{"joy": 0.9}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"emotion":"joy","confidence_score":0.9,"all_scores":{"joy":0.9}}`, string(out))
}
