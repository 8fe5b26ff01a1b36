// internal/pipeline/retrieve-knowledge/query.go
package retrieveknowledge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// BuildQuery is the text embedded for retrieval.
func BuildQuery(emotion, transcript string) string {
	return fmt.Sprintf("Emotion: %s. User statement: %s", emotion, transcript)
}

// BuildKNNRequest builds an approximate nearest-neighbour search returning only the text field.
func BuildKNNRequest(config *Config, vector []float32) (*esapi.SearchRequest, error) {
	body := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          config.VectorField,
			"query_vector":   vector,
			"k":              config.TopK,
			"num_candidates": config.NumCandidates,
		},
		"_source": []string{config.TextField},
		"size":    config.TopK,
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	return &esapi.SearchRequest{
		Index: []string{config.Index},
		Body:  bytes.NewReader(raw),
	}, nil
}
