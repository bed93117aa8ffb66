package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/posreports/backend/internal/domain/report"
	"github.com/posreports/backend/internal/infrastructure/persistence/models"
)

// GormReportSink stores daily and category summaries in the report tables.
// A day is replaced as a whole inside one transaction.
type GormReportSink struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormReportSink creates a new GormReportSink
func NewGormReportSink(db *gorm.DB) *GormReportSink {
	return &GormReportSink{db: db, now: time.Now}
}

// SaveDay implements report.ReportSink
func (s *GormReportSink) SaveDay(ctx context.Context, daily *report.DailySummary, category *report.CategorySummary) error {
	if daily == nil || category == nil {
		return errors.New("both summaries are required")
	}
	if daily.Date != category.Date {
		return fmt.Errorf("summary dates differ: %s and %s", daily.Date, category.Date)
	}

	summary, subCategories := dailyToModels(daily, s.now())
	rows := categoryToModels(category)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range models.ReportModels() {
			if err := tx.Where("report_date = ?", daily.Date).Delete(m).Error; err != nil {
				return fmt.Errorf("clear %s: %w", daily.Date, err)
			}
		}
		if err := tx.Create(summary).Error; err != nil {
			return fmt.Errorf("insert daily summary: %w", err)
		}
		if len(subCategories) > 0 {
			if err := tx.Create(&subCategories).Error; err != nil {
				return fmt.Errorf("insert sub-categories: %w", err)
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert category rows: %w", err)
		}
		return nil
	})
}

// FindDay implements report.ReportReader
func (s *GormReportSink) FindDay(ctx context.Context, date string) (*report.DailySummary, *report.CategorySummary, error) {
	db := s.db.WithContext(ctx)

	var summary models.DailySummaryModel
	if err := db.Where("report_date = ?", date).First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, report.ErrReportNotFound
		}
		return nil, nil, err
	}

	var subCategories []models.DailySubCategoryModel
	if err := db.Where("report_date = ?", date).Order("position").Find(&subCategories).Error; err != nil {
		return nil, nil, err
	}
	var rows []models.CategoryRowModel
	if err := db.Where("report_date = ?", date).Order("position").Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	return dailyFromModels(summary, subCategories), categoryFromModels(date, rows), nil
}

func dailyToModels(s *report.DailySummary, computedAt time.Time) (*models.DailySummaryModel, []models.DailySubCategoryModel) {
	m := &models.DailySummaryModel{
		ReportDate:  s.Date,
		WindowStart: s.WindowStart,
		WindowEnd:   s.WindowEnd,
		GrossTotal:  s.GrossTotal,
		GST:         s.GST,
		PST:         s.PST,
		LiquorTax:   s.LiquorTax,
		Tax4:        s.Tax4,
		TotalTaxes:  s.TotalTaxes,
		NetTotal:    s.NetTotal,
		Discount:    s.Discount,
		Customers:   s.Customers,
		AverageSale: s.AverageSale,
		ShowTax4:    s.ShowTax4,
		ComputedAt:  computedAt,
	}
	subs := make([]models.DailySubCategoryModel, 0, len(s.SubCategories))
	for i, sc := range s.SubCategories {
		subs = append(subs, models.DailySubCategoryModel{
			ReportDate:  s.Date,
			Position:    i,
			SubCategory: sc.SubCategory,
			Net:         sc.Net,
		})
	}
	return m, subs
}

func dailyFromModels(m models.DailySummaryModel, subs []models.DailySubCategoryModel) *report.DailySummary {
	s := &report.DailySummary{
		Date:          m.ReportDate,
		WindowStart:   m.WindowStart,
		WindowEnd:     m.WindowEnd,
		GrossTotal:    m.GrossTotal,
		GST:           m.GST,
		PST:           m.PST,
		LiquorTax:     m.LiquorTax,
		Tax4:          m.Tax4,
		TotalTaxes:    m.TotalTaxes,
		NetTotal:      m.NetTotal,
		Discount:      m.Discount,
		Customers:     m.Customers,
		AverageSale:   m.AverageSale,
		ShowTax4:      m.ShowTax4,
		SubCategories: make([]report.SubCategoryAmount, 0, len(subs)),
	}
	for _, sc := range subs {
		s.SubCategories = append(s.SubCategories, report.SubCategoryAmount{SubCategory: sc.SubCategory, Net: sc.Net})
	}
	return s
}

func categoryRowModel(date string, pos int, r report.CategoryRow, c *report.CategorySummary, total bool) models.CategoryRowModel {
	return models.CategoryRowModel{
		ReportDate:    date,
		Position:      pos,
		Label:         r.Label,
		AmountNet:     r.AmountNet,
		AmountTaxIncl: r.AmountTaxIncl,
		CategoryCount: r.CategoryCount,
		Customers:     r.Customers,
		IsTotal:       total,
		WindowStart:   c.WindowStart,
		WindowEnd:     c.WindowEnd,
	}
}

func categoryToModels(c *report.CategorySummary) []models.CategoryRowModel {
	rows := make([]models.CategoryRowModel, 0, len(c.Rows)+1)
	for i, r := range c.Rows {
		rows = append(rows, categoryRowModel(c.Date, i, r, c, false))
	}
	return append(rows, categoryRowModel(c.Date, len(c.Rows), c.Total, c, true))
}

func categoryFromModels(date string, rows []models.CategoryRowModel) *report.CategorySummary {
	c := &report.CategorySummary{Date: date, Rows: []report.CategoryRow{}}
	for _, m := range rows {
		row := report.CategoryRow{
			Label:         m.Label,
			AmountNet:     m.AmountNet,
			AmountTaxIncl: m.AmountTaxIncl,
			CategoryCount: m.CategoryCount,
			Customers:     m.Customers,
		}
		c.WindowStart, c.WindowEnd = m.WindowStart, m.WindowEnd
		if m.IsTotal {
			c.Total = row
			continue
		}
		c.Rows = append(c.Rows, row)
	}
	return c
}
