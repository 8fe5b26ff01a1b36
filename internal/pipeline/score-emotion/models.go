// internal/pipeline/score-emotion/models.go
package scoreemotion

import "therapy-connect/internal/models"

type Input struct {
	Text string `json:"text"`
}

type Output = models.EmotionResult

type predictRequest struct {
	Instances []string `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
}
