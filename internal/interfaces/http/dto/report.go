package dto

import (
	"github.com/posreports/backend/internal/domain/report"
)

// ReportIndexResponse lists the dates that have persisted summaries
type ReportIndexResponse struct {
	Latest    *string  `json:"latest"`
	Dates     []string `json:"dates"`
	Count     int      `json:"count"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

// NewReportIndexResponse converts an index document
func NewReportIndexResponse(doc report.IndexDocument) ReportIndexResponse {
	dates := doc.Dates
	if dates == nil {
		dates = []string{}
	}
	return ReportIndexResponse{
		Latest:    doc.Latest,
		Dates:     dates,
		Count:     len(dates),
		UpdatedAt: doc.UpdatedAt,
	}
}

// DailySummaryResponse is a daily summary plus its formatted display lines
type DailySummaryResponse struct {
	report.DailySummary
	Lines []report.DisplayLine `json:"lines"`
}

// CategoryReportResponse is a category summary plus its formatted table
type CategoryReportResponse struct {
	report.CategorySummary
	Headers []string   `json:"headers"`
	Table   [][]string `json:"table"`
}

// ReportDayResponse carries both summaries of one business day
type ReportDayResponse struct {
	Date     string                 `json:"date"`
	Daily    DailySummaryResponse   `json:"daily"`
	Category CategoryReportResponse `json:"category"`
}

// NewReportDayResponse builds the response for one day
func NewReportDayResponse(daily *report.DailySummary, category *report.CategorySummary) ReportDayResponse {
	rows := category.Table()
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, row.Cells())
	}
	resp := ReportDayResponse{
		Date:  daily.Date,
		Daily: DailySummaryResponse{DailySummary: *daily, Lines: daily.DisplayLines()},
		Category: CategoryReportResponse{
			CategorySummary: *category,
			Headers:         report.CategoryReportHeaders,
			Table:           table,
		},
	}
	if resp.Daily.SubCategories == nil {
		resp.Daily.SubCategories = []report.SubCategoryAmount{}
	}
	if resp.Category.Rows == nil {
		resp.Category.Rows = []report.CategoryRow{}
	}
	return resp
}
