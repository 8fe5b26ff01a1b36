// internal/pipeline/generate-summary/handler_test.go
package generatesummary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"therapy-connect/internal/common/genai"
	"therapy-connect/internal/common/logger"
	"therapy-connect/internal/models"
)

type fakeGenerator struct {
	prompts []string
	text    string
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func TestBuildHistory_TwoAnswers(t *testing.T) {
	history := BuildHistory("I feel stuck at work", []models.Answer{
		{Question: "How intense is it?", Answer: 7},
		{Question: "How much energy do you have?", Answer: 3},
	})

	want := strings.Join([]string{
		`User's initial statement: "I feel stuck at work"`,
		`Assistant's Question: "How intense is it?"`,
		`User's Answer (1-10): 7`,
		`Assistant's Question: "How much energy do you have?"`,
		`User's Answer (1-10): 3`,
	}, "\n")
	assert.Equal(t, want, history)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("HISTORY")
	assert.Contains(t, prompt, "Conversation History:\n---\nHISTORY\n---")
	assert.Contains(t, prompt, "(300-400 words)")
	assert.Contains(t, prompt, "three or four key insights")
	assert.Contains(t, prompt, "two to three gentle, actionable suggestions")
}

func TestExecute_Success(t *testing.T) {
	gen := &fakeGenerator{text: "\n  It sounds like work has been heavy lately.  \n"}
	h := NewHandler(gen, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{
		OriginalText: "I feel stuck at work",
		Answers:      []models.Answer{{Question: "How intense is it?", Answer: 7}},
	})

	require.NoError(t, err)
	assert.Equal(t, "It sounds like work has been heavy lately.", out.Summary)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], `User's Answer (1-10): 7`)
}

func TestExecute_Failures(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		err     error
		wantErr error
	}{
		{name: "empty text", text: "   ", wantErr: ErrGenerationFailed},
		{name: "no text is not a fallback", err: genai.ErrNoText, wantErr: ErrGenerationFailed},
		{name: "transport", err: fmt.Errorf("%w: status 503", genai.ErrGenerationFailed), wantErr: ErrGenerationFailed},
		{name: "timeout", err: fmt.Errorf("%w: deadline", genai.ErrGenerationTimeout), wantErr: ErrGenerationTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeGenerator{text: tt.text, err: tt.err}, logger.NewNoOpLogger())
			_, err := h.Execute(context.Background(), &Input{
				OriginalText: "x",
				Answers:      []models.Answer{{Question: "q", Answer: 5}},
			})
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}
