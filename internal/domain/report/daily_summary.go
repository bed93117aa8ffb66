package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// dailyTransTypes and dailyGroupTransTypes select the rows the daily
// summary query reads. Only TransType 101 is arithmetic "sales"; the rest
// are fetched for the customer count.
var (
	dailyTransTypes      = map[int]struct{}{101: {}, 102: {}, 103: {}, 104: {}, 311: {}, 501: {}, 780: {}}
	dailyGroupTransTypes = map[int]struct{}{1: {}, 2: {}}
)

// DailyTransTypes lists the transaction types of the daily summary query
func DailyTransTypes() []int {
	return []int{101, 102, 103, 104, 311, 501, 780}
}

// DailyGroupTransTypes lists the group transaction types of the daily summary query
func DailyGroupTransTypes() []int {
	return []int{1, 2}
}

// IsDailyCandidate reports whether a row passes the daily summary prefilter
func IsDailyCandidate(e LedgerEntry) bool {
	if e.Status != StatusActive {
		return false
	}
	if _, ok := dailyTransTypes[e.TransType]; ok {
		return true
	}
	_, ok := dailyGroupTransTypes[e.GroupTransType]
	return ok
}

// SubCategoryAmount is the net sales of one sub-category
type SubCategoryAmount struct {
	SubCategory string          `json:"sub_category"`
	Net         decimal.Decimal `json:"net"`
}

// DailySummary is the whole-day sales summary of one business day
type DailySummary struct {
	Date          string              `json:"date"`
	WindowStart   time.Time           `json:"window_start"`
	WindowEnd     time.Time           `json:"window_end"`
	GrossTotal    decimal.Decimal     `json:"gross_total"`
	GST           decimal.Decimal     `json:"gst"`
	PST           decimal.Decimal     `json:"pst"`
	LiquorTax     decimal.Decimal     `json:"liquor_tax"`
	Tax4          decimal.Decimal     `json:"tax4"`
	TotalTaxes    decimal.Decimal     `json:"total_taxes"`
	NetTotal      decimal.Decimal     `json:"net_total"`
	Discount      decimal.Decimal     `json:"discount"`
	Customers     int64               `json:"customers"`
	AverageSale   decimal.Decimal     `json:"average_sale"`
	SubCategories []SubCategoryAmount `json:"sub_categories"`
	// ShowTax4 hides the Tax4 line from presentation when its total is zero
	ShowTax4 bool `json:"show_tax4"`
}

// AggregateDailySummary computes the daily summary from the rows of one
// business day. Rows failing the daily prefilter are ignored.
func AggregateDailySummary(day BusinessDay, entries []LedgerEntry) *DailySummary {
	s := &DailySummary{
		Date:        day.Key(),
		WindowStart: day.Start,
		WindowEnd:   day.End,
		GrossTotal:  decimal.Zero,
		GST:         decimal.Zero,
		PST:         decimal.Zero,
		LiquorTax:   decimal.Zero,
		Tax4:        decimal.Zero,
		Discount:    decimal.Zero,
	}

	receipts := make(map[int64]struct{})
	bySubCategory := make(map[string]decimal.Decimal)

	for _, e := range entries {
		if !IsDailyCandidate(e) {
			continue
		}

		if e.GroupTransType == GroupTransTypeSale && e.ReceiptNumber != nil {
			receipts[*e.ReceiptNumber] = struct{}{}
		}

		if e.TransType != TransTypeSale {
			continue
		}

		factor := ExclusionFactor(e)
		s.GrossTotal = s.GrossTotal.Add(GrossLine(e))
		s.GST = s.GST.Add(ToDecimal(e.Tax1Amount).Mul(factor))
		s.PST = s.PST.Add(ToDecimal(e.Tax2Amount).Mul(factor))
		s.LiquorTax = s.LiquorTax.Add(ToDecimal(e.Tax3Amount).Mul(factor))
		s.Tax4 = s.Tax4.Add(ToDecimal(e.Tax4Amount).Mul(factor))
		s.Discount = s.Discount.Add(ToDecimal(e.DiscountAmount))

		key := GroupLabel(e.SubCategoryID)
		bySubCategory[key] = bySubCategory[key].Add(NetLine(e))
	}

	s.TotalTaxes = s.GST.Add(s.PST).Add(s.LiquorTax).Add(s.Tax4)
	s.NetTotal = s.GrossTotal.Sub(s.TotalTaxes)
	s.Customers = int64(len(receipts))
	s.AverageSale = decimal.Zero
	if s.Customers > 0 {
		s.AverageSale = s.NetTotal.Div(decimal.NewFromInt(s.Customers))
	}
	s.ShowTax4 = !s.Tax4.IsZero()

	s.SubCategories = make([]SubCategoryAmount, 0, len(bySubCategory))
	for k, v := range bySubCategory {
		s.SubCategories = append(s.SubCategories, SubCategoryAmount{SubCategory: k, Net: v})
	}
	sort.Slice(s.SubCategories, func(i, j int) bool {
		return s.SubCategories[i].SubCategory < s.SubCategories[j].SubCategory
	})

	return s
}

// DisplayLine is one formatted line of a summary, in presentation order
type DisplayLine struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	Highlight bool   `json:"highlight,omitempty"`
}

// DisplayLines returns the summary in the line order of the POS terminal's
// "Summary Report Daily". Formatting happens here and nowhere earlier.
func (s *DailySummary) DisplayLines() []DisplayLine {
	lines := []DisplayLine{
		{Label: "Total Sales:", Value: FormatAmount(s.GrossTotal), Highlight: true},
	}
	for _, sc := range s.SubCategories {
		lines = append(lines, DisplayLine{Label: sc.SubCategory, Value: FormatAmount(sc.Net)})
	}

	lines = append(lines,
		DisplayLine{Label: "Net Total Sales", Value: FormatAmount(s.NetTotal), Highlight: true},
		DisplayLine{Label: "GST 5%", Value: FormatAmount(s.GST)},
		DisplayLine{Label: "PST 7%", Value: FormatAmount(s.PST)},
		DisplayLine{Label: "LIQ TAX 10%", Value: FormatAmount(s.LiquorTax)},
	)
	if s.ShowTax4 {
		lines = append(lines, DisplayLine{Label: "Tax4", Value: FormatAmount(s.Tax4)})
	}
	lines = append(lines,
		DisplayLine{Label: "Total taxes", Value: FormatAmount(s.TotalTaxes), Highlight: true},
		DisplayLine{Label: "Total Sales", Value: FormatAmount(s.GrossTotal), Highlight: true},
		DisplayLine{Label: "Discount", Value: FormatAmount(s.Discount)},
		DisplayLine{Label: "Customer count", Value: FormatCount(decimal.NewFromInt(s.Customers))},
		DisplayLine{Label: "Average Sale", Value: FormatAmount(s.AverageSale)},
	)
	return lines
}
