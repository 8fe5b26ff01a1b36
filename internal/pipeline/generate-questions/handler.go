// internal/pipeline/generate-questions/handler.go
package generatequestions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"therapy-connect/internal/common/genai"
	"therapy-connect/internal/common/logger"
	"therapy-connect/internal/common/metrics"
	"therapy-connect/internal/common/validation"
)

const (
	StageName = "generate-questions"
)

var (
	ErrGenerationFailed  = errors.New("GENERATION_FAILED")
	ErrGenerationTimeout = errors.New("GENERATION_TIMEOUT")
)

var questionsSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["questions"],
	"properties": {
		"questions": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		}
	}
}`)

// Generator produces text for a prompt.
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

// Execute asks the model for clarifying questions. Unusable model output degrades to
// FallbackQuestions; transport failures are returned as errors.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	text, err := h.generator.Generate(ctx, BuildPrompt(input))
	switch {
	case errors.Is(err, genai.ErrNoText):
		return h.fallback("model returned no text"), nil
	case errors.Is(err, genai.ErrGenerationTimeout):
		return nil, fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	questions, err := ParseQuestions(text)
	if err != nil {
		return h.fallback(err.Error()), nil
	}

	return &Output{Questions: questions}, nil
}

func (h *Handler) fallback(reason string) *Output {
	metrics.QuestionFallbacks.Inc()
	h.logger.Warn("using fallback questions", map[string]interface{}{
		"reason": reason,
	})

	questions := make([]string, len(FallbackQuestions))
	copy(questions, FallbackQuestions)
	return &Output{Questions: questions, Fallback: true, FallbackReason: reason}
}

// ParseQuestions extracts the questions list from model text, tolerating markdown code fences.
func ParseQuestions(text string) ([]string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var doc interface{}
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	if err := questionsSchema.Validate(doc); err != nil {
		return nil, err
	}

	var parsed struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("malformed JSON: %w", err)
	}
	return parsed.Questions, nil
}
