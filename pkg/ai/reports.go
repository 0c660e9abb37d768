package ai

import (
	"context"
	"time"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

// AIReportResponse represents the structure of AI-generated reports
type AIReportResponse struct {
	Status      string     `json:"status"`
	Data        ReportData `json:"data"`
	GeneratedAt time.Time  `json:"generated_at"`
	AIEnabled   bool       `json:"ai_enabled"`
}

type ReportData struct {
	RawData    *models.SalesReport `json:"raw_data"`
	AIInsights string              `json:"ai_insights,omitempty"`
	Summary    string              `json:"summary"`
	Error      string              `json:"error,omitempty"`
}

// SalesInsights wraps the status report with generated commentary when the
// AI service is enabled. AI failures are reported in the payload, never as
// an error.
func (c *Client) SalesInsights(ctx context.Context, report *models.SalesReport) *AIReportResponse {
	response := &AIReportResponse{
		Status:      "success",
		GeneratedAt: time.Now(),
		AIEnabled:   c.IsEnabled(),
		Data: ReportData{
			RawData: report,
			Summary: "Raw sales data (AI insights unavailable)",
		},
	}
	if !c.IsEnabled() {
		return response
	}

	insights, err := c.generateCompletion(ctx, SalesReportSystemPrompt, formatSalesDataPrompt(report), 800)
	if err != nil {
		response.Data.Error = "AI analysis failed: " + err.Error()
		return response
	}
	response.Data.AIInsights = insights
	response.Data.Summary = "AI-generated sales insights"
	return response
}
