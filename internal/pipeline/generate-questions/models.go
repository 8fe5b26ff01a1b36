// internal/pipeline/generate-questions/models.go
package generatequestions

import "therapy-connect/internal/models"

type Input struct {
	OriginalText string               `json:"original_text"`
	Emotion      models.EmotionResult `json:"emotion_data"`
	Snippets     []string             `json:"snippets"`
}

// Output carries the questions and whether they are the fixed fallback set.
type Output struct {
	Questions      []string `json:"questions"`
	Fallback       bool     `json:"fallback"`
	FallbackReason string   `json:"fallback_reason,omitempty"`
}
