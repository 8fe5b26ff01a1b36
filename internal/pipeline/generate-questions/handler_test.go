// internal/pipeline/generate-questions/handler_test.go
package generatequestions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"therapy-connect/internal/common/genai"
	"therapy-connect/internal/common/logger"
	"therapy-connect/internal/common/metrics"
	"therapy-connect/internal/models"
)

// ==========================
// Fakes
// ==========================

type fakeGenerator struct {
	prompts []string
	text    string
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func sadnessInput() *Input {
	return &Input{
		OriginalText: "I haven't been sleeping and I feel alone",
		Emotion: models.EmotionResult{
			Emotion:         "Sadness",
			ConfidenceScore: 0.62,
			AllScores: map[string]float64{
				"Sadness":  0.62,
				"joy":      0.03,
				"love":     0.05,
				"angry":    0.08,
				"fear":     0.15,
				"surprise": 0.07,
			},
		},
		Snippets: []string{"Loneliness is common.", "Sleep hygiene matters."},
	}
}

// ==========================
// Prompt Tests
// ==========================

func TestBuildPrompt_SadnessWithFear(t *testing.T) {
	prompt := BuildPrompt(sadnessInput())

	assert.Contains(t, prompt, "A user has shared this: 'I haven't been sleeping and I feel alone'.")
	assert.Contains(t, prompt, "The primary emotion detected is 'Sadness' with a confidence of 62.0%.")
	assert.Contains(t, prompt, " Other notable emotions include: fear (15.0%).")
	assert.NotContains(t, prompt, "angry (")
	assert.Contains(t, prompt, "'Loneliness is common.\n\n---\n\nSleep hygiene matters.'")
	assert.Contains(t, prompt, `a single key "questions"`)
	assert.Contains(t, prompt, "5 to 7 clarifying questions")
	assert.Contains(t, prompt, "scale of 1 to 10")
}

func TestEmotionDetails(t *testing.T) {
	tests := []struct {
		name   string
		result models.EmotionResult
		want   string
	}{
		{
			name:   "no secondary emotions",
			result: models.EmotionResult{Emotion: "joy", ConfidenceScore: 0.95, AllScores: map[string]float64{"joy": 0.95, "love": 0.05}},
			want:   "The primary emotion detected is 'joy' with a confidence of 95.0%.",
		},
		{
			name:   "threshold is exclusive",
			result: models.EmotionResult{Emotion: "fear", ConfidenceScore: 0.5, AllScores: map[string]float64{"fear": 0.5, "Sadness": 0.1, "surprise": 0.4}},
			want:   "The primary emotion detected is 'fear' with a confidence of 50.0%. Other notable emotions include: surprise (40.0%).",
		},
		{
			name:   "label order",
			result: models.EmotionResult{Emotion: "angry", ConfidenceScore: 0.4, AllScores: map[string]float64{"angry": 0.4, "surprise": 0.2, "Sadness": 0.25, "love": 0.15}},
			want:   "The primary emotion detected is 'angry' with a confidence of 40.0%. Other notable emotions include: Sadness (25.0%), love (15.0%), surprise (20.0%).",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EmotionDetails(tt.result))
		})
	}
}

// ==========================
// Execute Tests
// ==========================

func TestExecute_ParsesFencedJSON(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"questions\": [\"Q1?\", \"Q2?\", \"Q3?\", \"Q4?\", \"Q5?\"]}\n```"}
	h := NewHandler(gen, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), sadnessInput())

	require.NoError(t, err)
	assert.False(t, out.Fallback)
	assert.Equal(t, []string{"Q1?", "Q2?", "Q3?", "Q4?", "Q5?"}, out.Questions)
	require.Len(t, gen.prompts, 1)
}

func TestExecute_Fallback(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
	}{
		{name: "malformed json", text: "Sure! Here are some questions: 1. How..."},
		{name: "missing key", text: `{"items": ["a"]}`},
		{name: "empty list", text: `{"questions": []}`},
		{name: "wrong type", text: `{"questions": "how are you?"}`},
		{name: "non-string entries", text: `{"questions": [1, 2]}`},
		{name: "no text", err: fmt.Errorf("wrapped: %w", genai.ErrNoText)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(metrics.QuestionFallbacks)
			h := NewHandler(&fakeGenerator{text: tt.text, err: tt.err}, logger.NewNoOpLogger())

			out, err := h.Execute(context.Background(), sadnessInput())

			require.NoError(t, err)
			assert.True(t, out.Fallback)
			assert.NotEmpty(t, out.FallbackReason)
			assert.Len(t, out.Questions, 5)
			assert.Equal(t, FallbackQuestions, out.Questions)
			assert.Equal(t, before+1, testutil.ToFloat64(metrics.QuestionFallbacks))
		})
	}
}

func TestExecute_FallbackIsACopy(t *testing.T) {
	h := NewHandler(&fakeGenerator{text: "nope"}, logger.NewNoOpLogger())
	out, err := h.Execute(context.Background(), sadnessInput())
	require.NoError(t, err)

	out.Questions[0] = "mutated"
	assert.True(t, strings.HasPrefix(FallbackQuestions[0], "On a scale of 1-10"))
}

func TestExecute_CollaboratorFailures(t *testing.T) {
	t.Run("transport failure", func(t *testing.T) {
		h := NewHandler(&fakeGenerator{err: fmt.Errorf("%w: status 500", genai.ErrGenerationFailed)}, logger.NewNoOpLogger())
		_, err := h.Execute(context.Background(), sadnessInput())
		assert.True(t, errors.Is(err, ErrGenerationFailed))
	})

	t.Run("timeout", func(t *testing.T) {
		h := NewHandler(&fakeGenerator{err: fmt.Errorf("%w: deadline", genai.ErrGenerationTimeout)}, logger.NewNoOpLogger())
		_, err := h.Execute(context.Background(), sadnessInput())
		assert.True(t, errors.Is(err, ErrGenerationTimeout))
	})
}

func TestParseQuestions_PlainJSON(t *testing.T) {
	qs, err := ParseQuestions(`  {"questions": ["How tired are you?"]}  `)
	require.NoError(t, err)
	assert.Equal(t, []string{"How tired are you?"}, qs)
}
