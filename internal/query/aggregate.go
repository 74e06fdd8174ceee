package query

import (
	"sort"

	"github.com/shopspring/decimal"

	"symdir/models"
)

// Count is one bucket of a grouping.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// sortCounts orders buckets by count descending, then label.
func sortCounts(counts []Count) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Label < counts[j].Label
	})
}

func countBy(ls []models.Listing, key func(models.Listing) (string, bool)) []Count {
	idx := make(map[string]int)
	var out []Count
	for _, l := range ls {
		k, ok := key(l)
		if !ok {
			continue
		}
		i, seen := idx[k]
		if !seen {
			i = len(out)
			idx[k] = i
			out = append(out, Count{Label: k})
		}
		out[i].Count++
	}
	sortCounts(out)
	return out
}

// CountByExchange groups rows by exchange_detail. The counts sum to len(ls).
func CountByExchange(ls []models.Listing) []Count {
	return countBy(ls, func(l models.Listing) (string, bool) { return string(l.Exchange), true })
}

// CountByType returns the Stock and ETF counts, both always present.
func CountByType(ls []models.Listing) []Count {
	stocks, etfs := 0, 0
	for _, l := range ls {
		if l.IsETF {
			etfs++
		} else {
			stocks++
		}
	}
	return []Count{
		{Label: string(models.TypeStock), Count: stocks},
		{Label: string(models.TypeETF), Count: etfs},
	}
}

// TopExchanges returns the n largest exchange buckets.
func TopExchanges(ls []models.Listing, n int) []Count {
	counts := CountByExchange(ls)
	if n > 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// ETFsByExchange counts ETFs per exchange, leaving out exchanges with none.
func ETFsByExchange(ls []models.Listing) []Count {
	return countBy(ls, func(l models.Listing) (string, bool) { return string(l.Exchange), l.IsETF })
}

// ExchangeTypeCount is one (exchange_detail, Type) group.
type ExchangeTypeCount struct {
	Exchange models.ExchangeDetail `json:"exchange"`
	Type     models.SecurityType   `json:"type"`
	Count    int                   `json:"count"`
}

// CountByExchangeAndType groups rows by exchange and type, omitting empty
// groups, ordered by exchange then Stock before ETF.
func CountByExchangeAndType(ls []models.Listing) []ExchangeTypeCount {
	type key struct {
		e models.ExchangeDetail
		t models.SecurityType
	}
	counts := make(map[key]int)
	for _, l := range ls {
		counts[key{l.Exchange, l.Type()}]++
	}
	out := make([]ExchangeTypeCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, ExchangeTypeCount{Exchange: k.e, Type: k.t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exchange != out[j].Exchange {
			return out[i].Exchange < out[j].Exchange
		}
		return out[i].Type == models.TypeStock && out[j].Type == models.TypeETF
	})
	return out
}

// ExchangeBreakdown is one row of the exchange by type pivot.
type ExchangeBreakdown struct {
	Exchange models.ExchangeDetail `json:"exchange"`
	Stock    int                   `json:"stock"`
	ETF      int                   `json:"etf"`
	Total    int                   `json:"total"`
	StockPct decimal.Decimal       `json:"stock_pct"`
	ETFPct   decimal.Decimal       `json:"etf_pct"`
}

// ExchangeTypeBreakdown pivots the table into per-exchange Stock/ETF counts
// with percentages rounded to one decimal, ordered by exchange.
func ExchangeTypeBreakdown(ls []models.Listing) []ExchangeBreakdown {
	rows := make(map[models.ExchangeDetail]*ExchangeBreakdown)
	for _, c := range CountByExchangeAndType(ls) {
		r, ok := rows[c.Exchange]
		if !ok {
			r = &ExchangeBreakdown{Exchange: c.Exchange}
			rows[c.Exchange] = r
		}
		if c.Type == models.TypeETF {
			r.ETF += c.Count
		} else {
			r.Stock += c.Count
		}
		r.Total += c.Count
	}

	out := make([]ExchangeBreakdown, 0, len(rows))
	for _, r := range rows {
		r.StockPct = Percent(r.Stock, r.Total)
		r.ETFPct = Percent(r.ETF, r.Total)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Exchange < out[j].Exchange })
	return out
}

// CategoryCount is one NASDAQ market category bucket.
type CategoryCount struct {
	Category    models.MarketCategory `json:"category"`
	Code        string                `json:"code"`
	Description string                `json:"description"`
	Count       int                   `json:"count"`
}

// CountByMarketCategory groups the NASDAQ-origin rows by tier. Rows from
// the other feed and NASDAQ rows without a category are not counted.
func CountByMarketCategory(ls []models.Listing) []CategoryCount {
	counts := countBy(ls, func(l models.Listing) (string, bool) {
		return string(l.Category), l.Primary == models.PrimaryNasdaq && l.Category != models.CategoryNone
	})
	out := make([]CategoryCount, 0, len(counts))
	for _, c := range counts {
		cat := models.MarketCategory(c.Label)
		out = append(out, CategoryCount{
			Category:    cat,
			Code:        cat.Code(),
			Description: cat.Description(),
			Count:       c.Count,
		})
	}
	return out
}

// Percent returns part/total*100 rounded to one decimal place, or zero when
// total is zero.
func Percent(part, total int) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1)
}
