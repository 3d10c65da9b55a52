package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/docflow/pkg/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		Endpoint:  srv.URL,
		Model:     "llama3",
		MaxTokens: 512,
	}, logger.NewTestLogger())
}

func respond(t *testing.T, w http.ResponseWriter, response string) {
	t.Helper()
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
		"response": response,
		"model":    "llama3",
		"done":     true,
	}))
}

func TestExtractEntitiesStripsFences(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req["model"])
		assert.Equal(t, false, req["stream"])

		respond(t, w, "```json\n{\"dates\":[\"2024-01-01\"],\"amounts\":[\"$400\"]}\n```")
	})

	entities, err := client.ExtractEntities(context.Background(), "Invoice due 2024-01-01 for $400")
	require.NoError(t, err)
	assert.JSONEq(t, `{"dates":["2024-01-01"],"amounts":["$400"]}`, string(entities))
}

func TestExtractEntitiesRejectsNonJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, "Sure! Here are the entities you asked for.")
	})

	_, err := client.ExtractEntities(context.Background(), "some text")
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestClassify(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `{"category":"invoice","confidence_score":91.5}`)
	})

	result, err := client.Classify(context.Background(), "Invoice #42", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "invoice", result.Category)
	assert.Equal(t, 91.5, result.ConfidenceScore)
}

func TestClassifyRejectsEmptyCategory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `{"category":"","confidence_score":10}`)
	})

	_, err := client.Classify(context.Background(), "???", nil)
	assert.ErrorContains(t, err, "empty category")
}

func TestClassifySurfacesModelError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewEncoder(w).Encode(map[string]string{
			"error": "model not loaded",
		}))
	})

	_, err := client.Classify(context.Background(), "text", nil)
	assert.ErrorContains(t, err, "model not loaded")
}

func TestSummarize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, "  Pay $400 by 2024-01-01.\n")
	})

	summary, err := client.Summarize(context.Background(), "long email body ...")
	require.NoError(t, err)
	assert.Equal(t, "Pay $400 by 2024-01-01.", summary)
}

func TestSummarizePassesEmptyThrough(t *testing.T) {
	// no server call should happen for whitespace-only input
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request")
	})

	summary, err := client.Summarize(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, "   ", summary)
}

func TestUnexpectedStatusCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.ExtractEntities(context.Background(), "text")
	assert.ErrorContains(t, err, "503")
}
