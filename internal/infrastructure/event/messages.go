// Package event announces persisted business days to downstream consumers
// over AMQP.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/posreports/backend/internal/domain/report"
)

// ReportGeneratedType is the AMQP message type of ReportGeneratedMessage
const ReportGeneratedType = "report.generated"

// ReportGeneratedMessage announces that both documents of a business day
// were persisted. It carries the headline figures so consumers need not
// fetch the documents for a dashboard tile.
type ReportGeneratedMessage struct {
	ID         uuid.UUID `json:"id"`
	RunID      string    `json:"run_id,omitempty"`
	Date       string    `json:"date"`
	GrossTotal string    `json:"gross_total"`
	NetTotal   string    `json:"net_total"`
	TotalTaxes string    `json:"total_taxes"`
	Customers  int64     `json:"customers"`
	Categories int       `json:"categories"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewReportGeneratedMessage builds the message for a persisted day
func NewReportGeneratedMessage(runID string, daily *report.DailySummary, category *report.CategorySummary, now time.Time) *ReportGeneratedMessage {
	return &ReportGeneratedMessage{
		ID:         uuid.New(),
		RunID:      runID,
		Date:       daily.Date,
		GrossTotal: report.FormatAmount(daily.GrossTotal),
		NetTotal:   report.FormatAmount(daily.NetTotal),
		TotalTaxes: report.FormatAmount(daily.TotalTaxes),
		Customers:  daily.Customers,
		Categories: len(category.Rows),
		Timestamp:  now.UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportGeneratedMessageFromJSON parses a message body
func ReportGeneratedMessageFromJSON(data []byte) (*ReportGeneratedMessage, error) {
	var msg ReportGeneratedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
