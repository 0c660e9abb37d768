package ai

import (
	"encoding/json"
	"fmt"
)

const (
	RecommendationSystemPrompt = `You rank products for a marketplace shopper.
You receive the shopper's cart and a list of candidate products as JSON.
Reply with a JSON array of candidate ids, most relevant first.
Only use ids from the candidate list. Reply with the array and nothing else.`

	SalesReportSystemPrompt = `You are a business analyst for an online marketplace.
Summarise order volume and revenue by fulfilment status in two short paragraphs.
Call out cancellations and returns when they are a noticeable share of orders.`
)

type promptLine struct {
	ID       string  `json:"id,omitempty"`
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity,omitempty"`
}

func formatRecommendationPrompt(cart, candidates []promptLine) string {
	cartJSON, _ := json.MarshalIndent(cart, "", "  ")
	candidateJSON, _ := json.MarshalIndent(candidates, "", "  ")
	return fmt.Sprintf(`Cart:
%s

Candidates:
%s`, string(cartJSON), string(candidateJSON))
}

func formatSalesDataPrompt(salesData interface{}) string {
	jsonData, _ := json.MarshalIndent(salesData, "", "  ")
	return fmt.Sprintf(`Order totals grouped by status:

%s`, string(jsonData))
}
