package models

// EmotionLabels is the classifier's output order. Index i of a prediction is the score of EmotionLabels[i].
var EmotionLabels = []string{"Sadness", "joy", "love", "angry", "fear", "surprise"}

// EmotionResult is the outcome of scoring one transcript.
type EmotionResult struct {
	Emotion         string             `json:"emotion"`
	ConfidenceScore float64            `json:"confidence_score"`
	AllScores       map[string]float64 `json:"all_scores"`
}
