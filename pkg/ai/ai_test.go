package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/v2/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zaptest"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

func completionServer(t *testing.T, status int, content string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	return NewClient(Config{BaseURL: srv.URL + "/", APIKey: "test-key", Model: "test-model"},
		zaptest.NewLogger(t), option.WithMaxRetries(0))
}

func catalogue(names ...string) []models.Product {
	out := make([]models.Product, len(names))
	for i, n := range names {
		out[i] = models.Product{ID: bson.NewObjectID(), Name: n, Category: "misc", Price: float64(10 * (i + 1))}
	}
	return out
}

func names(products []models.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}

func TestRankDisabledKeepsCatalogueOrder(t *testing.T) {
	client := NewClient(Config{}, zaptest.NewLogger(t))
	assert.False(t, client.IsEnabled())

	products := catalogue("lamp", "mug", "rug")
	cart := models.NewCart(bson.NewObjectID())
	cart.AddItem(&products[1], 1, models.DefaultPricing)

	ranking := client.Rank(context.Background(), cart, products)
	assert.False(t, ranking.AIRanked)
	assert.Equal(t, []string{"lamp", "rug"}, names(ranking.Products))
}

func TestRankUsesModelOrder(t *testing.T) {
	products := catalogue("lamp", "mug", "rug", "vase")
	reply := "```json\n[\"" + products[3].ID.Hex() + "\", \"not-an-id\", \"" + products[1].ID.Hex() + "\"]\n```"
	srv, calls := completionServer(t, http.StatusOK, reply)

	ranking := newTestClient(t, srv).Rank(context.Background(), nil, products)
	assert.True(t, ranking.AIRanked)
	assert.Equal(t, []string{"vase", "mug", "lamp", "rug"}, names(ranking.Products))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRankFallsBackOnFailure(t *testing.T) {
	products := catalogue("lamp", "mug", "rug")

	t.Run("server error", func(t *testing.T) {
		srv, _ := completionServer(t, http.StatusInternalServerError, "")
		ranking := newTestClient(t, srv).Rank(context.Background(), nil, products)
		assert.False(t, ranking.AIRanked)
		assert.Equal(t, []string{"lamp", "mug", "rug"}, names(ranking.Products))
	})

	t.Run("prose reply", func(t *testing.T) {
		srv, _ := completionServer(t, http.StatusOK, "I would suggest the mug.")
		ranking := newTestClient(t, srv).Rank(context.Background(), nil, products)
		assert.False(t, ranking.AIRanked)
		assert.Equal(t, []string{"lamp", "mug", "rug"}, names(ranking.Products))
	})
}

func TestRankSkipsModelForSingleCandidate(t *testing.T) {
	srv, calls := completionServer(t, http.StatusOK, "[]")
	ranking := newTestClient(t, srv).Rank(context.Background(), nil, catalogue("lamp"))
	assert.Len(t, ranking.Products, 1)
	assert.Zero(t, calls.Load())
}

func TestParseRanking(t *testing.T) {
	ids, err := parseRanking(" [\"a\",\"b\"] ")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	ids, err = parseRanking("```\n[\"c\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids)

	_, err = parseRanking("{}")
	var aiErr *AIError
	assert.ErrorAs(t, err, &aiErr)
}

func TestSalesInsights(t *testing.T) {
	report := models.NewSalesReport([]models.StatusSummary{
		{Status: models.OrderPlaced, Count: 2, Revenue: 3088},
		{Status: models.OrderCancelled, Count: 1, Revenue: 1544},
	})

	disabled := NewClient(Config{}, zaptest.NewLogger(t)).SalesInsights(context.Background(), report)
	assert.False(t, disabled.AIEnabled)
	assert.Empty(t, disabled.Data.AIInsights)
	assert.Equal(t, 3088.0, disabled.Data.RawData.NetRevenue)

	srv, _ := completionServer(t, http.StatusOK, "Orders are healthy.")
	enabled := newTestClient(t, srv).SalesInsights(context.Background(), report)
	assert.True(t, enabled.AIEnabled)
	assert.Equal(t, "Orders are healthy.", enabled.Data.AIInsights)

	failing, _ := completionServer(t, http.StatusInternalServerError, "")
	failed := newTestClient(t, failing).SalesInsights(context.Background(), report)
	assert.Equal(t, "success", failed.Status)
	assert.Contains(t, failed.Data.Error, "AI analysis failed")
}
