package query

import (
	"fmt"
	"strings"

	"symdir/internal/symbols"
	"symdir/models"
)

// ParseFilter builds a Filter from user input. Exchange and type values may
// be repeated or comma separated; blanks are ignored.
func ParseFilter(search string, exchanges, types []string) (Filter, error) {
	f := Filter{Search: strings.TrimSpace(search)}
	for _, v := range splitValues(exchanges) {
		e, ok := symbols.ParseExchangeDetail(v)
		if !ok {
			return Filter{}, fmt.Errorf("unknown exchange %q", v)
		}
		f.Exchanges = append(f.Exchanges, e)
	}
	for _, v := range splitValues(types) {
		t, ok := symbols.ParseSecurityType(v)
		if !ok {
			return Filter{}, fmt.Errorf("unknown type %q", v)
		}
		f.Types = append(f.Types, t)
	}
	return f, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Options lists the distinct exchanges present in ls, in enumeration order.
func Options(ls []models.Listing) []models.ExchangeDetail {
	seen := make(map[models.ExchangeDetail]bool)
	for _, l := range ls {
		seen[l.Exchange] = true
	}
	var out []models.ExchangeDetail
	for _, e := range models.ExchangeDetails() {
		if seen[e] {
			out = append(out, e)
		}
	}
	return out
}
