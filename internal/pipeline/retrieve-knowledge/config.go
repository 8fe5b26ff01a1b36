// internal/pipeline/retrieve-knowledge/config.go
package retrieveknowledge

import "time"

type Config struct {
	Index         string
	VectorField   string
	TextField     string
	TopK          int
	NumCandidates int

	EmbeddingURL        string
	EmbeddingAPIKey     string
	EmbeddingTimeout    time.Duration
	EmbeddingMaxRetries int
}

func LoadConfig() *Config {
	return &Config{
		Index:            "therapeutic_knowledge_base",
		VectorField:      "embedding",
		TextField:        "text",
		TopK:             5,
		NumCandidates:    50,
		EmbeddingURL:     "http://localhost:8080",
		EmbeddingTimeout: 10 * time.Second,
	}
}
