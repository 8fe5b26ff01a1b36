// internal/pipeline/generate-summary/models.go
package generatesummary

import "therapy-connect/internal/models"

type Input struct {
	OriginalText string          `json:"original_text"`
	Answers      []models.Answer `json:"answers"`
}

type Output struct {
	Summary string `json:"summary"`
}
