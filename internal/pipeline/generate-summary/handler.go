// internal/pipeline/generate-summary/handler.go
package generatesummary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"therapy-connect/internal/common/genai"
	"therapy-connect/internal/common/logger"
	"therapy-connect/internal/models"
)

const (
	StageName = "generate-summary"
)

var (
	ErrGenerationFailed  = errors.New("GENERATION_FAILED")
	ErrGenerationTimeout = errors.New("GENERATION_TIMEOUT")
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Handler struct {
	generator Generator
	logger    logger.Logger
}

func NewHandler(generator Generator, log logger.Logger) *Handler {
	return &Handler{
		generator: generator,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute writes the closing summary for a finished conversation. There is no fallback.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	text, err := h.generator.Generate(ctx, BuildPrompt(BuildHistory(input.OriginalText, input.Answers)))
	if err != nil {
		if errors.Is(err, genai.ErrGenerationTimeout) {
			return nil, fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	summary := strings.TrimSpace(text)
	if summary == "" {
		return nil, fmt.Errorf("%w: empty summary", ErrGenerationFailed)
	}

	h.logger.Info("summary generated", map[string]interface{}{
		"answers": len(input.Answers),
		"words":   len(strings.Fields(summary)),
	})
	return &Output{Summary: summary}, nil
}

// BuildHistory renders the conversation the way the summary prompt expects it.
func BuildHistory(originalText string, answers []models.Answer) string {
	lines := make([]string, 0, 1+2*len(answers))
	lines = append(lines, fmt.Sprintf("User's initial statement: \"%s\"", originalText))
	for _, a := range answers {
		lines = append(lines,
			fmt.Sprintf("Assistant's Question: \"%s\"", a.Question),
			fmt.Sprintf("User's Answer (1-10): %d", a.Answer),
		)
	}
	return strings.Join(lines, "\n")
}

func BuildPrompt(history string) string {
	return strings.Join([]string{
		"You are an empathetic therapeutic assistant. You have just had the following diagnostic conversation with a user, where they rated their feelings on a scale of 1-10.",
		"",
		"Conversation History:",
		"---",
		history,
		"---",
		"",
		"Based on this entire conversation, provide a final, supportive summary in a few paragraphs (300-400 words).",
		"Your response should:",
		"1. Acknowledge their initial statement and their ratings.",
		"2. Validate their feelings in a warm and non-judgmental tone.",
		"3. Synthesize the information to offer three or four key insights into their situation.",
		"4. Provide two to three gentle, actionable suggestions they could try.",
	}, "\n")
}
