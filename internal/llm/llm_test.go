package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/raine/auction-bot/internal/item"
	"github.com/raine/auction-bot/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodReply = "Here you go:\n```json\n" + `{
  "identified_product_type": "Cordless Drill",
  "brand": "DeWalt",
  "model_name_number": "DCD771",
  "other_relevant_attributes": "20V MAX",
  "google_search_query": "DeWalt DCD771 cordless drill",
  "amazon_search_query": "DeWalt DCD771"
}` + "\n```"

func TestBuildInput(t *testing.T) {
	it := item.Item{
		Description:         "Lot #1: Drill",
		EnhancedDescription: "dewalt Drill",
		OCRText:             "DEWALT DCD771",
		OCRBrands:           []string{"dewalt"},
		OCRModelNumbers:     []string{"dcd771"},
		ObjectDetection: &item.Detection{
			Objects: []string{"wide_item", "power drill", "square_item"},
			Brands:  []string{"dewalt"},
			Colors:  []string{"yellow", "black"},
		},
	}
	want := strings.Join([]string{
		"ITEM DESCRIPTION: Lot #1: Drill",
		"ENHANCED DESCRIPTION: dewalt Drill",
		"OCR TEXT: DEWALT DCD771",
		"DETECTED BRANDS: dewalt",
		"DETECTED MODEL NUMBERS: dcd771",
		"DETECTED OBJECTS: power drill",
		"CV DETECTED BRANDS: dewalt",
		"DETECTED COLORS: yellow, black",
	}, "\n\n")
	assert.Equal(t, want, BuildInput(it))

	same := item.Item{Description: "Lamp", EnhancedDescription: "Lamp"}
	assert.Equal(t, "ITEM DESCRIPTION: Lamp", BuildInput(same))
	assert.Empty(t, BuildInput(item.Item{}))
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("ITEM DESCRIPTION: Lamp")
	assert.Contains(t, p, "Input OCR Text:\nITEM DESCRIPTION: Lamp")
	assert.Contains(t, p, `"google_search_query"`)
	assert.False(t, strings.HasPrefix(p, "\t"))
	assert.NotContains(t, p, "{input_text}")
}

func TestParseResponse(t *testing.T) {
	res, err := ParseResponse(goodReply)
	require.NoError(t, err)
	assert.Equal(t, "Cordless Drill", res.ProductType)
	assert.Equal(t, "DeWalt", res.Brand)
	assert.Equal(t, "DCD771", res.Model)
	assert.Equal(t, "20V MAX", res.Attributes)
	assert.Equal(t, "DeWalt DCD771 cordless drill", res.GoogleQuery)
	assert.False(t, res.Insufficient)

	tests := []struct {
		name string
		json string
	}{
		{"unknown brand", `{"identified_product_type":"Lamp","brand":"Unknown","model_name_number":"X1","google_search_query":"a","amazon_search_query":"b"}`},
		{"unclear model", `{"identified_product_type":"Lamp","brand":"Ikea","model_name_number":"unclear","google_search_query":"a","amazon_search_query":"b"}`},
		{"empty type", `{"identified_product_type":"","brand":"Ikea","model_name_number":"X1","google_search_query":"a","amazon_search_query":"b"}`},
		{"missing amazon query", `{"identified_product_type":"Lamp","brand":"Ikea","model_name_number":"X1","google_search_query":"a"}`},
		{"missing fields", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseResponse(tt.json)
			require.NoError(t, err)
			assert.True(t, res.Insufficient)
		})
	}
}

func TestParseResponse_Errors(t *testing.T) {
	_, err := ParseResponse("I cannot help with that")
	assert.Error(t, err)
	_, err = ParseResponse("{not json}")
	assert.Error(t, err)
}

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func TestGenerator(t *testing.T) {
	c := &fakeCompleter{reply: goodReply}
	res, err := NewGenerator(c).GenerateSearchQuery(context.Background(), item.Item{Description: "Drill"})
	require.NoError(t, err)
	assert.Equal(t, "DeWalt", res.Brand)
	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], "ITEM DESCRIPTION: Drill")

	_, err = NewGenerator(c).GenerateSearchQuery(context.Background(), item.Item{})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = NewGenerator(&fakeCompleter{err: errors.New("timeout")}).GenerateSearchQuery(context.Background(), item.Item{Description: "Drill"})
	assert.Error(t, err)
}

func TestOpenRouter(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, openRouterReferer, r.Header.Get("HTTP-Referer"))

		var body struct {
			Model       string  `json:"model"`
			MaxTokens   int     `json:"max_tokens"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test/model", body.Model)
		assert.Equal(t, 1024, body.MaxTokens)
		assert.InDelta(t, 0.3, body.Temperature, 1e-6)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		assert.Equal(t, "hello", body.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": "world"}}},
		})
	}))
	defer ts.Close()

	text, err := NewOpenRouter("test-key", "test/model", ts.URL).Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "world", text)
}

func TestOpenRouter_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer ts.Close()

	_, err := NewOpenRouter("k", "m", ts.URL).Complete(context.Background(), "hello")
	assert.Error(t, err)
}

type countingGenerator struct {
	calls int
	res   *Result
}

func (g *countingGenerator) GenerateSearchQuery(context.Context, item.Item) (*Result, error) {
	g.calls++
	return g.res, nil
}

func TestCachedGenerator(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer store.Close()

	inner := &countingGenerator{res: &Result{ProductType: "Lamp", Brand: "Ikea", Model: "Unknown", Insufficient: true}}
	gen := NewCachedGenerator(inner, store)
	it := item.Item{Description: "Floor lamp"}

	first, err := gen.GenerateSearchQuery(context.Background(), it)
	require.NoError(t, err)
	second, err := gen.GenerateSearchQuery(context.Background(), it)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)

	_, err = gen.GenerateSearchQuery(context.Background(), item.Item{Description: "Table lamp"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
