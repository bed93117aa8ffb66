package report

import (
	"database/sql"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// ParseAmount converts a raw ledger value to an exact decimal.
// It never fails: blank or non-numeric input yields zero, because POS
// journals routinely carry nulls and junk in numeric columns.
func ParseAmount(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ToDecimal coerces any ledger value to an exact decimal, returning zero
// for nil, unparseable or unsupported input. It never panics.
func ToDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return *x
	case decimal.NullDecimal:
		if !x.Valid {
			return decimal.Zero
		}
		return x.Decimal
	case *decimal.NullDecimal:
		if x == nil || !x.Valid {
			return decimal.Zero
		}
		return x.Decimal
	case string:
		return ParseAmount(x)
	case *string:
		if x == nil {
			return decimal.Zero
		}
		return ParseAmount(*x)
	case []byte:
		return ParseAmount(string(x))
	case int:
		return decimal.NewFromInt(int64(x))
	case int8:
		return decimal.NewFromInt(int64(x))
	case int16:
		return decimal.NewFromInt(int64(x))
	case int32:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case uint8:
		return decimal.NewFromInt(int64(x))
	case uint16:
		return decimal.NewFromInt(int64(x))
	case uint32:
		return decimal.NewFromInt(int64(x))
	case uint:
		return ParseAmount(strconv.FormatUint(uint64(x), 10))
	case uint64:
		return ParseAmount(strconv.FormatUint(x, 10))
	case float32:
		return fromFloat(float64(x))
	case float64:
		return fromFloat(x)
	case bool:
		if x {
			return one
		}
		return decimal.Zero
	case sql.NullString:
		if !x.Valid {
			return decimal.Zero
		}
		return ParseAmount(x.String)
	case sql.NullInt64:
		if !x.Valid {
			return decimal.Zero
		}
		return decimal.NewFromInt(x.Int64)
	case sql.NullInt32:
		if !x.Valid {
			return decimal.Zero
		}
		return decimal.NewFromInt(int64(x.Int32))
	case sql.NullFloat64:
		if !x.Valid {
			return decimal.Zero
		}
		return fromFloat(x.Float64)
	default:
		return decimal.Zero
	}
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// TaxTotal is the sum of the four tax amounts of a line
func TaxTotal(e LedgerEntry) decimal.Decimal {
	return ToDecimal(e.Tax1Amount).
		Add(ToDecimal(e.Tax2Amount)).
		Add(ToDecimal(e.Tax3Amount)).
		Add(ToDecimal(e.Tax4Amount))
}

// ExclusionFactor is 1 when the line's taxes are not embedded in Amount
// and 0 when they are.
func ExclusionFactor(e LedgerEntry) decimal.Decimal {
	return one.Sub(ToDecimal(e.TaxInclude))
}

// GrossLine is the line amount with every applicable tax included
func GrossLine(e LedgerEntry) decimal.Decimal {
	return ToDecimal(e.Amount).Add(TaxTotal(e).Mul(ExclusionFactor(e)))
}

// NetLine is the line amount with embedded taxes removed
func NetLine(e LedgerEntry) decimal.Decimal {
	return ToDecimal(e.Amount).Sub(TaxTotal(e).Mul(ToDecimal(e.TaxInclude)))
}

// FormatAmount renders d with exactly two fraction digits and thousands
// separators, rounding half to even like the POS terminal. A negative
// value that rounds to zero keeps its sign ("-0.00").
func FormatAmount(d decimal.Decimal) string {
	negative := d.Sign() < 0
	abs := d.Abs().RoundBank(2)

	whole, frac, _ := strings.Cut(abs.StringFixed(2), ".")
	s := groupThousands(whole) + "." + frac
	if negative {
		return "-" + s
	}
	return s
}

// groupThousands puts a comma between each group of three digits. It works
// on the decimal string so amounts beyond the int64 range stay exact.
func groupThousands(digits string) string {
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3)
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatCount renders a count with no fraction digits, truncating toward zero
func FormatCount(d decimal.Decimal) string {
	return strconv.FormatInt(d.IntPart(), 10)
}
