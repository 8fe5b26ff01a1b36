// internal/pipeline/retrieve-knowledge/handler.go
package retrieveknowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"therapy-connect/internal/common/logger"
)

const (
	StageName = "retrieve-knowledge"
)

var (
	ErrRetrievalFailed = errors.New("RETRIEVAL_FAILED")
	ErrIndexNotFound   = errors.New("INDEX_NOT_FOUND")
)

type Handler struct {
	config   *Config
	client   *elasticsearch.Client
	embedder Embedder
	logger   logger.Logger
}

func NewHandler(config *Config, client *elasticsearch.Client, embedder Embedder, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		client:   client,
		embedder: embedder,
		logger: log.With(map[string]interface{}{
			"stage": StageName,
		}),
	}
}

// Execute returns the top-K passages closest to the emotion-augmented transcript, in store order.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	query := BuildQuery(input.Emotion, input.Transcript)

	vector, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %v", ErrRetrievalFailed, err)
	}

	req, err := BuildKNNRequest(h.config, vector)
	if err != nil {
		return nil, fmt.Errorf("%w: build query: %v", ErrRetrievalFailed, err)
	}

	res, err := req.Do(ctx, h.client)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrRetrievalFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: search: %s", ErrRetrievalFailed, res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrRetrievalFailed, err)
	}

	snippets := make([]string, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		if text, ok := hit.Source[h.config.TextField].(string); ok {
			snippets = append(snippets, text)
		}
	}

	h.logger.Debug("knowledge retrieved", map[string]interface{}{
		"query": query,
		"hits":  len(snippets),
	})

	return &Output{Query: query, Snippets: snippets}, nil
}

// CheckIndex fails with ErrIndexNotFound when the knowledge index is absent.
func (h *Handler) CheckIndex(ctx context.Context) error {
	res, err := h.client.Indices.Exists([]string{h.config.Index}, h.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrIndexNotFound, h.config.Index)
	default:
		return fmt.Errorf("%w: index check: %s", ErrRetrievalFailed, res.Status())
	}
}
