package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummaryModel is one business day's whole-day summary
type DailySummaryModel struct {
	ReportDate  string          `gorm:"column:report_date;type:varchar(10);primaryKey"`
	WindowStart time.Time       `gorm:"column:window_start;not null"`
	WindowEnd   time.Time       `gorm:"column:window_end;not null"`
	GrossTotal  decimal.Decimal `gorm:"column:gross_total;type:decimal(20,4);not null"`
	GST         decimal.Decimal `gorm:"column:gst;type:decimal(20,4);not null"`
	PST         decimal.Decimal `gorm:"column:pst;type:decimal(20,4);not null"`
	LiquorTax   decimal.Decimal `gorm:"column:liquor_tax;type:decimal(20,4);not null"`
	Tax4        decimal.Decimal `gorm:"column:tax4;type:decimal(20,4);not null"`
	TotalTaxes  decimal.Decimal `gorm:"column:total_taxes;type:decimal(20,4);not null"`
	NetTotal    decimal.Decimal `gorm:"column:net_total;type:decimal(20,4);not null"`
	Discount    decimal.Decimal `gorm:"column:discount;type:decimal(20,4);not null"`
	Customers   int64           `gorm:"column:customers;not null"`
	AverageSale decimal.Decimal `gorm:"column:average_sale;type:decimal(20,4);not null"`
	ShowTax4    bool            `gorm:"column:show_tax4;not null"`
	ComputedAt  time.Time       `gorm:"column:computed_at;not null"`
}

func (DailySummaryModel) TableName() string {
	return "report_daily_summaries"
}

// DailySubCategoryModel is one line of a day's sub-category breakdown
type DailySubCategoryModel struct {
	ReportDate  string          `gorm:"column:report_date;type:varchar(10);primaryKey"`
	Position    int             `gorm:"column:position;primaryKey"`
	SubCategory string          `gorm:"column:sub_category;type:varchar(255);not null"`
	Net         decimal.Decimal `gorm:"column:net;type:decimal(20,4);not null"`
}

func (DailySubCategoryModel) TableName() string {
	return "report_daily_subcategories"
}

// CategoryRowModel is one group of a day's category report. The TOTAL row
// is stored with IsTotal set and the highest position.
type CategoryRowModel struct {
	ReportDate    string          `gorm:"column:report_date;type:varchar(10);primaryKey"`
	Position      int             `gorm:"column:position;primaryKey"`
	Label         string          `gorm:"column:label;type:varchar(255);not null"`
	AmountNet     decimal.Decimal `gorm:"column:amount_net;type:decimal(20,4);not null"`
	AmountTaxIncl decimal.Decimal `gorm:"column:amount_tax_incl;type:decimal(20,4);not null"`
	CategoryCount decimal.Decimal `gorm:"column:category_count;type:decimal(20,4);not null"`
	Customers     int64           `gorm:"column:customers;not null"`
	IsTotal       bool            `gorm:"column:is_total;not null"`
	WindowStart   time.Time       `gorm:"column:window_start;not null"`
	WindowEnd     time.Time       `gorm:"column:window_end;not null"`
}

func (CategoryRowModel) TableName() string {
	return "report_category_rows"
}

// ReportModels lists the report tables, for AutoMigrate in tests and local sqlite sinks
func ReportModels() []any {
	return []any{&DailySummaryModel{}, &DailySubCategoryModel{}, &CategoryRowModel{}}
}
