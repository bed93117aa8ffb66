package storage

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/posreports/backend/internal/domain/report"
)

// Object names of a business day's documents, below the "<YYYY-MM-DD>/" folder
const (
	DailySummaryObject   = "summary_daily.json"
	CategoryReportObject = "category_report.json"

	jsonContentType = "application/json"
)

// DailySummaryKey returns the object key of the daily summary of date
func DailySummaryKey(date string) string {
	return path.Join(date, DailySummaryObject)
}

// CategoryReportKey returns the object key of the category report of date
func CategoryReportKey(date string) string {
	return path.Join(date, CategoryReportObject)
}

// DailySummaryDocument is the stored daily summary: the exact figures plus
// the formatted lines in terminal order.
type DailySummaryDocument struct {
	report.DailySummary
	Lines []report.DisplayLine `json:"lines"`
}

// CategoryReportDocument is the stored category report: the exact figures
// plus the formatted table, TOTAL row last.
type CategoryReportDocument struct {
	report.CategorySummary
	Headers []string   `json:"headers"`
	Table   [][]string `json:"table"`
}

// EncodeDailySummary renders the stored form of s. Equal summaries encode
// to identical bytes.
func EncodeDailySummary(s *report.DailySummary) ([]byte, error) {
	doc := DailySummaryDocument{DailySummary: *s, Lines: s.DisplayLines()}
	if doc.SubCategories == nil {
		doc.SubCategories = []report.SubCategoryAmount{}
	}
	return marshalDocument(doc)
}

// EncodeCategoryReport renders the stored form of s
func EncodeCategoryReport(s *report.CategorySummary) ([]byte, error) {
	doc := CategoryReportDocument{CategorySummary: *s, Headers: report.CategoryReportHeaders}
	if doc.Rows == nil {
		doc.Rows = []report.CategoryRow{}
	}
	for _, row := range s.Table() {
		doc.Table = append(doc.Table, row.Cells())
	}
	return marshalDocument(doc)
}

func marshalDocument(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeDailySummary parses a stored daily summary
func DecodeDailySummary(data []byte) (*report.DailySummary, error) {
	var doc DailySummaryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode daily summary: %w", err)
	}
	return &doc.DailySummary, nil
}

// DecodeCategoryReport parses a stored category report
func DecodeCategoryReport(data []byte) (*report.CategorySummary, error) {
	var doc CategoryReportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode category report: %w", err)
	}
	return &doc.CategorySummary, nil
}
