// internal/pipeline/score-emotion/config.go
package scoreemotion

import "time"

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

func LoadConfig() *Config {
	return &Config{
		BaseURL: "http://localhost:8501",
		Model:   "emotion_bilstm",
		Timeout: 10 * time.Second,
	}
}
