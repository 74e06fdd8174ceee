package query

import (
	"github.com/shopspring/decimal"

	"symdir/models"
)

// Summary carries the headline figures of a table.
type Summary struct {
	Total     int             `json:"total"`
	Stocks    int             `json:"stocks"`
	ETFs      int             `json:"etfs"`
	Exchanges int             `json:"exchanges"`
	ETFPct    decimal.Decimal `json:"etf_pct"`
	// NasdaqPct is the share of rows from the NASDAQ feed.
	NasdaqPct decimal.Decimal `json:"nasdaq_pct"`
	NYSEPct   decimal.Decimal `json:"nyse_pct"`
}

func Summarize(ls []models.Listing) Summary {
	s := Summary{Total: len(ls)}
	venues := make(map[models.ExchangeDetail]struct{})
	nasdaq, nyse := 0, 0
	for _, l := range ls {
		if l.IsETF {
			s.ETFs++
		} else {
			s.Stocks++
		}
		if l.Primary == models.PrimaryNasdaq {
			nasdaq++
		}
		if l.Exchange == models.ExchangeNYSE {
			nyse++
		}
		venues[l.Exchange] = struct{}{}
	}
	s.Exchanges = len(venues)
	s.ETFPct = Percent(s.ETFs, s.Total)
	s.NasdaqPct = Percent(nasdaq, s.Total)
	s.NYSEPct = Percent(nyse, s.Total)
	return s
}

// Report bundles every aggregate the dashboard and CLI show.
type Report struct {
	Summary        Summary             `json:"summary"`
	ByExchange     []Count             `json:"by_exchange"`
	ByType         []Count             `json:"by_type"`
	Breakdown      []ExchangeBreakdown `json:"breakdown"`
	Categories     []CategoryCount     `json:"categories"`
	TopExchanges   []Count             `json:"top_exchanges"`
	ETFsByExchange []Count             `json:"etfs_by_exchange"`
}

// BuildReport computes all aggregates over ls in one call.
func BuildReport(ls []models.Listing, top int) Report {
	return Report{
		Summary:        Summarize(ls),
		ByExchange:     CountByExchange(ls),
		ByType:         CountByType(ls),
		Breakdown:      ExchangeTypeBreakdown(ls),
		Categories:     CountByMarketCategory(ls),
		TopExchanges:   TopExchanges(ls, top),
		ETFsByExchange: ETFsByExchange(ls),
	}
}
