package report

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var categoryTransTypes = map[int]struct{}{101: {}, 102: {}, 111: {}, 112: {}}

// CategoryTransTypes lists the transaction types of the category report query
func CategoryTransTypes() []int {
	return []int{101, 102, 111, 112}
}

// TotalLabel is the label of the grand total row
const TotalLabel = "TOTAL"

// CategoryReportHeaders are the column titles of the POS category report
var CategoryReportHeaders = []string{"Group", "Amount", "Amount (Taxes Included)", "Category Count", "Customers"}

// SalesFlagPasses evaluates "(1 - SalesFlag) = 1" with SQL three-valued
// logic: a null flag (no matching category) is unknown and never passes.
func SalesFlagPasses(flag decimal.NullDecimal) bool {
	if !flag.Valid {
		return false
	}
	return one.Sub(flag.Decimal).Equal(one)
}

// IsCategoryCandidate reports whether a joined row passes the category
// report filter
func IsCategoryCandidate(e CategoryLedgerEntry) bool {
	if e.Status != StatusActive {
		return false
	}
	if _, ok := categoryTransTypes[e.TransType]; !ok {
		return false
	}
	return SalesFlagPasses(e.SalesFlag)
}

// CategoryRow holds the measures of one category group
type CategoryRow struct {
	Label         string          `json:"label"`
	AmountNet     decimal.Decimal `json:"amount_net"`
	AmountTaxIncl decimal.Decimal `json:"amount_tax_incl"`
	CategoryCount decimal.Decimal `json:"category_count"`
	Customers     int64           `json:"customers"`
}

// CategorySummary is the category report of one business day
type CategorySummary struct {
	Date        string        `json:"date"`
	WindowStart time.Time     `json:"window_start"`
	WindowEnd   time.Time     `json:"window_end"`
	Rows        []CategoryRow `json:"rows"`
	Total       CategoryRow   `json:"total"`
}

type categoryAccumulator struct {
	row      CategoryRow
	receipts map[int64]struct{}
}

func newCategoryAccumulator(label string) *categoryAccumulator {
	return &categoryAccumulator{
		row: CategoryRow{
			Label:         label,
			AmountNet:     decimal.Zero,
			AmountTaxIncl: decimal.Zero,
			CategoryCount: decimal.Zero,
		},
		receipts: make(map[int64]struct{}),
	}
}

func (a *categoryAccumulator) add(e CategoryLedgerEntry) {
	a.row.AmountNet = a.row.AmountNet.Add(NetLine(e.LedgerEntry))
	a.row.AmountTaxIncl = a.row.AmountTaxIncl.Add(GrossLine(e.LedgerEntry))
	a.row.CategoryCount = a.row.CategoryCount.Add(ToDecimal(e.Quantity))
	if e.ReceiptNumber != nil {
		a.receipts[*e.ReceiptNumber] = struct{}{}
	}
}

func (a *categoryAccumulator) result() CategoryRow {
	r := a.row
	r.Customers = int64(len(a.receipts))
	return r
}

// AggregateCategorySummary groups the joined rows of one business day by
// category label. The total row is computed over the whole filtered set,
// so a receipt spanning several groups counts once.
func AggregateCategorySummary(day BusinessDay, entries []CategoryLedgerEntry) *CategorySummary {
	groups := make(map[string]*categoryAccumulator)
	total := newCategoryAccumulator(TotalLabel)

	for _, e := range entries {
		if !IsCategoryCandidate(e) {
			continue
		}
		label := GroupLabel(e.GroupName)
		acc, ok := groups[label]
		if !ok {
			acc = newCategoryAccumulator(label)
			groups[label] = acc
		}
		acc.add(e)
		total.add(e)
	}

	s := &CategorySummary{
		Date:        day.Key(),
		WindowStart: day.Start,
		WindowEnd:   day.End,
		Rows:        make([]CategoryRow, 0, len(groups)),
		Total:       total.result(),
	}
	for _, acc := range groups {
		s.Rows = append(s.Rows, acc.result())
	}
	sortByCollation(s.Rows)
	return s
}

// sortByCollation orders rows the way the POS database sorts group names:
// case-insensitive collation, with byte order breaking ties between labels
// that differ only in case.
func sortByCollation(rows []CategoryRow) {
	// a Collator keeps scratch buffers and is not safe to share
	col := collate.New(language.Und, collate.IgnoreCase)
	slices.SortFunc(rows, func(a, b CategoryRow) int {
		if c := col.CompareString(a.Label, b.Label); c != 0 {
			return c
		}
		return strings.Compare(a.Label, b.Label)
	})
}

// Table returns the group rows followed by the grand total row
func (s *CategorySummary) Table() []CategoryRow {
	rows := make([]CategoryRow, 0, len(s.Rows)+1)
	rows = append(rows, s.Rows...)
	return append(rows, s.Total)
}

// Cells formats a row for display: money to two places, counts as integers
func (r CategoryRow) Cells() []string {
	return []string{
		r.Label,
		FormatAmount(r.AmountNet),
		FormatAmount(r.AmountTaxIncl),
		FormatCount(r.CategoryCount),
		FormatCount(decimal.NewFromInt(r.Customers)),
	}
}
