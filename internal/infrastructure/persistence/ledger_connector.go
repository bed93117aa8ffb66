package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/posreports/backend/internal/domain/report"
)

// Ledger tables are addressed with unquoted identifiers: SQL Server and
// SQLite match them case-insensitively, and PostgreSQL replicas fold them
// to lower case.
const (
	dailyEntriesSQL = `
SELECT
  TransType AS trans_type, GroupTransType AS group_trans_type,
  ReceiptN AS receipt_n, SubCategoryID AS sub_category_id, CategoryID AS category_id,
  Amount AS amount, DiscountAmount AS discount_amount, TaxInclude AS tax_include,
  Tax1Amount AS tax1_amount, Tax2Amount AS tax2_amount,
  Tax3Amount AS tax3_amount, Tax4Amount AS tax4_amount,
  Quantity AS quantity, Status AS status, DateR AS recorded_at
FROM Journal
WHERE DateR >= ? AND DateR < ?
  AND Status = ?
  AND (TransType IN ? OR GroupTransType IN ?)
ORDER BY DateR`

	categoryEntriesSQL = `
SELECT
  J.TransType AS trans_type, J.GroupTransType AS group_trans_type,
  J.ReceiptN AS receipt_n, J.SubCategoryID AS sub_category_id, J.CategoryID AS category_id,
  J.Amount AS amount, J.DiscountAmount AS discount_amount, J.TaxInclude AS tax_include,
  J.Tax1Amount AS tax1_amount, J.Tax2Amount AS tax2_amount,
  J.Tax3Amount AS tax3_amount, J.Tax4Amount AS tax4_amount,
  J.Quantity AS quantity, J.Status AS status, J.DateR AS recorded_at,
  C.SubCategoryID AS group_name, C.SalesFlag AS sales_flag
FROM Journal J
  LEFT OUTER JOIN Category C ON C.CategoryID = J.CategoryID
WHERE J.DateR >= ? AND J.DateR <= ?
  AND J.Status = ?
  AND (1 - C.SalesFlag) = 1
  AND J.TransType IN ?
ORDER BY J.DateR`
)

// journalRow is the scan target of both ledger queries. Numeric columns
// are read as text so that any driver representation parses leniently.
type journalRow struct {
	TransType      sql.NullInt64  `gorm:"column:trans_type"`
	GroupTransType sql.NullInt64  `gorm:"column:group_trans_type"`
	ReceiptN       sql.NullInt64  `gorm:"column:receipt_n"`
	SubCategoryID  sql.NullString `gorm:"column:sub_category_id"`
	CategoryID     sql.NullString `gorm:"column:category_id"`
	Amount         sql.NullString `gorm:"column:amount"`
	DiscountAmount sql.NullString `gorm:"column:discount_amount"`
	TaxInclude     sql.NullString `gorm:"column:tax_include"`
	Tax1Amount     sql.NullString `gorm:"column:tax1_amount"`
	Tax2Amount     sql.NullString `gorm:"column:tax2_amount"`
	Tax3Amount     sql.NullString `gorm:"column:tax3_amount"`
	Tax4Amount     sql.NullString `gorm:"column:tax4_amount"`
	Quantity       sql.NullString `gorm:"column:quantity"`
	Status         sql.NullInt64  `gorm:"column:status"`
	RecordedAt     sql.NullTime   `gorm:"column:recorded_at"`
	GroupName      sql.NullString `gorm:"column:group_name"`
	SalesFlag      sql.NullString `gorm:"column:sales_flag"`
}

func nullAmount(s sql.NullString) decimal.NullDecimal {
	if !s.Valid {
		return decimal.NullDecimal{}
	}
	return report.NullAmount(report.ParseAmount(s.String))
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func (r journalRow) toLedgerEntry() report.LedgerEntry {
	e := report.LedgerEntry{
		TransType:      int(r.TransType.Int64),
		GroupTransType: int(r.GroupTransType.Int64),
		SubCategoryID:  nullString(r.SubCategoryID),
		CategoryID:     nullString(r.CategoryID),
		Amount:         nullAmount(r.Amount),
		DiscountAmount: nullAmount(r.DiscountAmount),
		TaxInclude:     nullAmount(r.TaxInclude),
		Tax1Amount:     nullAmount(r.Tax1Amount),
		Tax2Amount:     nullAmount(r.Tax2Amount),
		Tax3Amount:     nullAmount(r.Tax3Amount),
		Tax4Amount:     nullAmount(r.Tax4Amount),
		Quantity:       nullAmount(r.Quantity),
		Status:         int(r.Status.Int64),
	}
	if r.ReceiptN.Valid {
		n := r.ReceiptN.Int64
		e.ReceiptNumber = &n
	}
	if r.RecordedAt.Valid {
		e.RecordedAt = r.RecordedAt.Time
	}
	return e
}

func (r journalRow) toCategoryEntry() report.CategoryLedgerEntry {
	return report.CategoryLedgerEntry{
		LedgerEntry: r.toLedgerEntry(),
		GroupName:   nullString(r.GroupName),
		SalesFlag:   nullAmount(r.SalesFlag),
	}
}

// GormLedgerConnector opens ledger sessions on a pooled connection
type GormLedgerConnector struct {
	db *gorm.DB
}

// NewGormLedgerConnector creates a new GormLedgerConnector
func NewGormLedgerConnector(db *gorm.DB) *GormLedgerConnector {
	return &GormLedgerConnector{db: db}
}

// Connect reserves one connection from the pool for the whole session
func (c *GormLedgerConnector) Connect(ctx context.Context) (report.LedgerSession, error) {
	sqlDB, err := c.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	// WithContext clones the statement, so the pinned pool stays local to the session
	tx := c.db.WithContext(ctx)
	tx.Statement.ConnPool = conn
	return &GormLedgerSession{db: tx, conn: conn}, nil
}

// GormLedgerSession runs the ledger queries on a single connection
type GormLedgerSession struct {
	db   *gorm.DB
	conn *sql.Conn
}

// DailyEntries implements report.LedgerSession
func (s *GormLedgerSession) DailyEntries(ctx context.Context, day report.BusinessDay) ([]report.LedgerEntry, error) {
	var rows []journalRow
	err := s.db.WithContext(ctx).
		Raw(dailyEntriesSQL, ledgerTime(day.Start), ledgerTime(day.End), report.StatusActive,
			report.DailyTransTypes(), report.DailyGroupTransTypes()).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]report.LedgerEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toLedgerEntry())
	}
	return entries, nil
}

// CategoryEntries implements report.LedgerSession
func (s *GormLedgerSession) CategoryEntries(ctx context.Context, day report.BusinessDay) ([]report.CategoryLedgerEntry, error) {
	var rows []journalRow
	err := s.db.WithContext(ctx).
		Raw(categoryEntriesSQL, ledgerTime(day.Start), ledgerTime(day.End), report.StatusActive,
			report.CategoryTransTypes()).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]report.CategoryLedgerEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.toCategoryEntry())
	}
	return entries, nil
}

// Close returns the connection to the pool
func (s *GormLedgerSession) Close() error {
	return s.conn.Close()
}

// ledgerTime strips the zone: the POS journal stores naive local wall time.
func ledgerTime(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
