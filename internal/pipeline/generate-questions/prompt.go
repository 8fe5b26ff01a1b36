// internal/pipeline/generate-questions/prompt.go
package generatequestions

import (
	"fmt"
	"strings"

	"therapy-connect/internal/models"
)

// secondaryThreshold is the score a non-primary emotion must exceed to be mentioned.
const secondaryThreshold = 0.10

// FallbackQuestions are served whenever the model's answer cannot be used.
var FallbackQuestions = []string{
	"On a scale of 1-10, how intense is this feeling right now?",
	"On a scale of 1-10, how much does this interfere with your daily life?",
	"On a scale of 1-10, how optimistic do you feel about the future?",
	"On a scale of 1-10, how connected do you feel to others?",
	"On a scale of 1-10, how much energy do you have for things you usually enjoy?",
}

// EmotionDetails describes the primary emotion and any notable secondary ones in label order.
func EmotionDetails(e models.EmotionResult) string {
	details := fmt.Sprintf("The primary emotion detected is '%s' with a confidence of %.1f%%.", e.Emotion, e.ConfidenceScore*100)

	var others []string
	for _, label := range models.EmotionLabels {
		score, ok := e.AllScores[label]
		if !ok || label == e.Emotion || score <= secondaryThreshold {
			continue
		}
		others = append(others, fmt.Sprintf("%s (%.1f%%)", label, score*100))
	}
	if len(others) > 0 {
		details += fmt.Sprintf(" Other notable emotions include: %s.", strings.Join(others, ", "))
	}
	return details
}

func BuildPrompt(input *Input) string {
	knowledge := strings.Join(input.Snippets, "\n\n---\n\n")

	return strings.Join([]string{
		fmt.Sprintf("You are a therapeutic assistant. A user has shared this: '%s'.", input.OriginalText),
		fmt.Sprintf("Here is the emotional analysis of their statement: %s", EmotionDetails(input.Emotion)),
		fmt.Sprintf("Based on this emotional context, and the general knowledge that '%s', your goal is to understand their state better.", knowledge),
		"",
		`Generate a JSON object containing a single key "questions" which is a list of 5 to 7 clarifying questions.`,
		"Each question must be answerable on a scale of 1 to 10.",
		"The questions should probe deeper into the user's statement and feelings, considering all the detected emotions.",
	}, "\n")
}
