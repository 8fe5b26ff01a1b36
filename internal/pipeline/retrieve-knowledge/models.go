// internal/pipeline/retrieve-knowledge/models.go
package retrieveknowledge

type Input struct {
	Emotion    string `json:"emotion"`
	Transcript string `json:"transcript"`
}

type Output struct {
	Query    string   `json:"query"`
	Snippets []string `json:"snippets"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string                 `json:"_id"`
			Score  float64                `json:"_score"`
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
