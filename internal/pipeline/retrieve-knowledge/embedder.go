// internal/pipeline/retrieve-knowledge/embedder.go
package retrieveknowledge

import (
	"context"
	"errors"
	"net/http"
	"strings"

	commonhttp "therapy-connect/internal/common/http"
)

// Embedder turns query text into a dense vector compatible with the index.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TEIEmbedder calls a text-embeddings-inference /embed endpoint.
type TEIEmbedder struct {
	baseURL string
	apiKey  string
	client  *commonhttp.Client
}

func NewTEIEmbedder(config *Config) *TEIEmbedder {
	return NewTEIEmbedderWithHTTP(config, &http.Client{Timeout: config.EmbeddingTimeout})
}

func NewTEIEmbedderWithHTTP(config *Config, hc *http.Client) *TEIEmbedder {
	return &TEIEmbedder{
		baseURL: strings.TrimRight(config.EmbeddingURL, "/"),
		apiKey:  config.EmbeddingAPIKey,
		client:  commonhttp.NewClientWithHTTP(hc, config.EmbeddingMaxRetries),
	}
}

func (e *TEIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	headers := map[string]string{}
	if e.apiKey != "" {
		headers["Authorization"] = "Bearer " + e.apiKey
	}

	var vectors [][]float32
	if err := e.client.PostJSON(ctx, e.baseURL+"/embed", headers, map[string]string{"inputs": text}, &vectors); err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("embedding service returned no vector")
	}
	return vectors[0], nil
}
