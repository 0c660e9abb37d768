package ai

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

// Ranking is the result of Rank. AIRanked is false when the candidates are
// returned in catalogue order.
type Ranking struct {
	Products []models.Product `json:"products"`
	AIRanked bool             `json:"ai_ranked"`
}

// Rank orders candidates by relevance to the cart. Candidates already in the
// cart are dropped. Ids the model invents are ignored and candidates it
// leaves out follow the ranked ones in catalogue order.
func (c *Client) Rank(ctx context.Context, cart *models.Cart, candidates []models.Product) Ranking {
	inCart := map[string]bool{}
	var cartLines []promptLine
	if cart != nil {
		for _, item := range cart.Items {
			inCart[item.ProductID.Hex()] = true
			cartLines = append(cartLines, promptLine{Name: item.Name, Price: item.Price, Quantity: item.Quantity})
		}
	}

	pool := make([]models.Product, 0, len(candidates))
	var lines []promptLine
	for _, p := range candidates {
		if inCart[p.ID.Hex()] {
			continue
		}
		pool = append(pool, p)
		lines = append(lines, promptLine{ID: p.ID.Hex(), Name: p.Name, Category: p.Category, Price: p.Price})
	}

	if !c.IsEnabled() || len(pool) < 2 {
		return Ranking{Products: pool}
	}

	reply, err := c.generateCompletion(ctx, RecommendationSystemPrompt, formatRecommendationPrompt(cartLines, lines), 500)
	if err != nil {
		return Ranking{Products: pool}
	}
	ids, err := parseRanking(reply)
	if err != nil {
		c.logger.Warn("AI ranking unparseable", zap.Error(err))
		return Ranking{Products: pool}
	}
	return Ranking{Products: applyRanking(pool, ids), AIRanked: true}
}

// parseRanking reads a JSON array of ids, tolerating a markdown code fence.
func parseRanking(reply string) ([]string, error) {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "```") {
		reply = strings.TrimPrefix(reply, "```json")
		reply = strings.TrimPrefix(reply, "```")
		reply = strings.TrimSuffix(strings.TrimSpace(reply), "```")
	}
	var ids []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &ids); err != nil {
		return nil, &AIError{Message: "ranking is not a JSON array of ids", Cause: err}
	}
	return ids, nil
}

func applyRanking(pool []models.Product, ids []string) []models.Product {
	byID := make(map[string]models.Product, len(pool))
	for _, p := range pool {
		byID[p.ID.Hex()] = p
	}

	ranked := make([]models.Product, 0, len(pool))
	used := map[string]bool{}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok || used[id] {
			continue
		}
		used[id] = true
		ranked = append(ranked, p)
	}
	for _, p := range pool {
		if !used[p.ID.Hex()] {
			ranked = append(ranked, p)
		}
	}
	return ranked
}
