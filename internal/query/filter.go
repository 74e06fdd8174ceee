package query

import (
	"sort"
	"strings"

	"symdir/models"
)

// Filter selects rows of the canonical table. Zero values select everything.
type Filter struct {
	// Search is matched case-insensitively as a substring of symbol or name.
	Search    string
	Exchanges []models.ExchangeDetail
	Types     []models.SecurityType
}

// Match reports whether l passes every part of the filter.
func (f Filter) Match(l models.Listing) bool {
	if q := strings.TrimSpace(f.Search); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(l.Symbol), q) && !strings.Contains(strings.ToLower(l.Name), q) {
			return false
		}
	}
	if len(f.Exchanges) > 0 && !containsExchange(f.Exchanges, l.Exchange) {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, l.Type()) {
		return false
	}
	return true
}

// Apply returns the matching rows in their original order. The input is
// never modified.
func (f Filter) Apply(ls []models.Listing) []models.Listing {
	out := make([]models.Listing, 0, len(ls))
	for _, l := range ls {
		if f.Match(l) {
			out = append(out, l)
		}
	}
	return out
}

func containsExchange(set []models.ExchangeDetail, v models.ExchangeDetail) bool {
	for _, e := range set {
		if e == v {
			return true
		}
	}
	return false
}

func containsType(set []models.SecurityType, v models.SecurityType) bool {
	for _, t := range set {
		if t == v {
			return true
		}
	}
	return false
}

// SortBySymbol returns a copy ordered by symbol, then exchange for duplicates.
func SortBySymbol(ls []models.Listing) []models.Listing {
	out := make([]models.Listing, len(ls))
	copy(out, ls)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Exchange < out[j].Exchange
	})
	return out
}

// Page is one window of a sorted, filtered listing.
type Page struct {
	Rows    []models.Listing `json:"rows"`
	Matched int              `json:"matched"`
	Total   int              `json:"total"`
	Offset  int              `json:"offset"`
	Limit   int              `json:"limit"`
}

// Paginate filters ls, sorts it by symbol and cuts [offset, offset+limit).
// A limit <= 0 returns every remaining row.
func Paginate(ls []models.Listing, f Filter, offset, limit int) Page {
	matched := SortBySymbol(f.Apply(ls))
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return Page{
		Rows:    matched[offset:end],
		Matched: len(matched),
		Total:   len(ls),
		Offset:  offset,
		Limit:   limit,
	}
}
