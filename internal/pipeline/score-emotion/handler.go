// internal/pipeline/score-emotion/handler.go
package scoreemotion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"unicode"

	commonhttp "therapy-connect/internal/common/http"
	"therapy-connect/internal/common/logger"
	"therapy-connect/internal/models"
)

const (
	StageName = "score-emotion"
)

var (
	ErrClassificationFailed = errors.New("CLASSIFICATION_FAILED")
)

type Handler struct {
	config *Config
	client *commonhttp.Client
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return NewHandlerWithHTTP(config, &http.Client{Timeout: config.Timeout}, log)
}

func NewHandlerWithHTTP(config *Config, hc *http.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		client: commonhttp.NewClientWithHTTP(hc, config.MaxRetries),
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute classifies the transcript into one of the six emotion labels.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	text := Normalize(input.Text)

	var resp predictResponse
	headers := map[string]string{}
	if h.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + h.config.APIKey
	}
	if err := h.client.PostJSON(ctx, h.predictURL(), headers, predictRequest{Instances: []string{text}}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	if len(resp.Predictions) == 0 {
		return nil, fmt.Errorf("%w: empty predictions", ErrClassificationFailed)
	}

	result, err := BuildResult(resp.Predictions[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	h.logger.Info("emotion scored", map[string]interface{}{
		"emotion":    result.Emotion,
		"confidence": result.ConfidenceScore,
	})
	return result, nil
}

func (h *Handler) predictURL() string {
	return fmt.Sprintf("%s/v1/models/%s:predict", strings.TrimRight(h.config.BaseURL, "/"), h.config.Model)
}

// Normalize lower-cases text, folds whitespace runes to a space, and drops everything
// outside [a-z0-9 ].
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	var sb strings.Builder
	sb.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsSpace(r) {
			r = ' '
		}
		if r == ' ' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// BuildResult maps raw classifier probabilities onto the label set.
// Ties go to the earliest label.
func BuildResult(scores []float64) (*models.EmotionResult, error) {
	if len(scores) != len(models.EmotionLabels) {
		return nil, fmt.Errorf("expected %d scores, got %d", len(models.EmotionLabels), len(scores))
	}

	best := 0
	all := make(map[string]float64, len(scores))
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("score %d is not finite", i)
		}
		all[models.EmotionLabels[i]] = round4(s)
		if s > scores[best] {
			best = i
		}
	}

	return &models.EmotionResult{
		Emotion:         models.EmotionLabels[best],
		ConfidenceScore: round4(scores[best]),
		AllScores:       all,
	}, nil
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
