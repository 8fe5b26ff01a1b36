// internal/pipeline/retrieve-knowledge/handler_test.go
package retrieveknowledge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"therapy-connect/internal/common/logger"
)

// ==========================
// Fakes
// ==========================

type fakeEmbedder struct {
	queries []string
	err     error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

const staticHits = `{"took":3,"hits":{"total":{"value":3},"hits":[
	{"_id":"a","_score":0.93,"_source":{"text":"Sadness often follows loss."}},
	{"_id":"b","_score":0.88,"_source":{"text":"Grounding exercises can help."}},
	{"_id":"c","_score":0.71,"_source":{"text":"Sleep affects mood."}}
]}}`

func newFakeES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return client
}

// ==========================
// Execute Tests
// ==========================

func TestExecute_ReturnsHitsInOrder(t *testing.T) {
	cfg := LoadConfig()
	es := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/therapeutic_knowledge_base/_search", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		knn := body["knn"].(map[string]interface{})
		assert.Equal(t, "embedding", knn["field"])
		assert.Equal(t, float64(5), knn["k"])
		assert.Equal(t, float64(50), knn["num_candidates"])
		assert.Len(t, knn["query_vector"], 3)
		assert.Equal(t, []interface{}{"text"}, body["_source"])

		w.Write([]byte(staticHits))
	})
	emb := &fakeEmbedder{}
	h := NewHandler(cfg, es, emb, logger.NewTestLogger(t))

	out, err := h.Execute(context.Background(), &Input{Emotion: "Sadness", Transcript: "I lost my job"})

	require.NoError(t, err)
	assert.Equal(t, []string{"Sadness often follows loss.", "Grounding exercises can help.", "Sleep affects mood."}, out.Snippets)
	assert.Equal(t, []string{"Emotion: Sadness. User statement: I lost my job"}, emb.queries)
}

func TestExecute_Idempotent(t *testing.T) {
	es := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(staticHits))
	})
	h := NewHandler(LoadConfig(), es, &fakeEmbedder{}, logger.NewNoOpLogger())

	in := &Input{Emotion: "fear", Transcript: "exams tomorrow"}
	first, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	second, err := h.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExecute_Failures(t *testing.T) {
	t.Run("embedding failure", func(t *testing.T) {
		es := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("search must not run")
		})
		h := NewHandler(LoadConfig(), es, &fakeEmbedder{err: errors.New("tei down")}, logger.NewNoOpLogger())

		_, err := h.Execute(context.Background(), &Input{Emotion: "joy", Transcript: "x"})
		assert.True(t, errors.Is(err, ErrRetrievalFailed))
	})

	t.Run("search error", func(t *testing.T) {
		es := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"type":"search_phase_execution_exception"}}`))
		})
		h := NewHandler(LoadConfig(), es, &fakeEmbedder{}, logger.NewNoOpLogger())

		_, err := h.Execute(context.Background(), &Input{Emotion: "joy", Transcript: "x"})
		assert.True(t, errors.Is(err, ErrRetrievalFailed))
	})
}

func TestCheckIndex(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "exists", status: http.StatusOK},
		{name: "missing", status: http.StatusNotFound, wantErr: ErrIndexNotFound},
		{name: "cluster error", status: http.StatusInternalServerError, wantErr: ErrRetrievalFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := newFakeES(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				w.WriteHeader(tt.status)
			})
			h := NewHandler(LoadConfig(), es, &fakeEmbedder{}, logger.NewNoOpLogger())

			err := h.CheckIndex(context.Background())
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr))
		})
	}
}

// ==========================
// Embedder / Query Tests
// ==========================

func TestTEIEmbedder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["inputs"])
		w.Write([]byte(`[[0.5,-0.25,1]]`))
	}))
	defer server.Close()

	cfg := LoadConfig()
	cfg.EmbeddingURL = server.URL + "/"
	cfg.EmbeddingTimeout = time.Second

	vec, err := NewTEIEmbedder(cfg).Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1}, vec)
}

func TestTEIEmbedder_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cfg := LoadConfig()
	cfg.EmbeddingURL = server.URL
	_, err := NewTEIEmbedder(cfg).Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestBuildQuery(t *testing.T) {
	assert.Equal(t, "Emotion: angry. User statement: they ignored me", BuildQuery("angry", "they ignored me"))
}

func TestBuildKNNRequest(t *testing.T) {
	cfg := LoadConfig()
	cfg.TopK = 3
	cfg.NumCandidates = 30

	req, err := BuildKNNRequest(cfg, []float32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"therapeutic_knowledge_base"}, req.Index)

	raw := new(strings.Builder)
	_, err = io.Copy(raw, req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"knn":{"field":"embedding","query_vector":[1,2],"k":3,"num_candidates":30},"_source":["text"],"size":3}`, raw.String())
}
