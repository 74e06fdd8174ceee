package symbols

import (
	"strings"

	"symdir/models"
)

// trailerPrefix starts the footer line the symbol directory files end with.
const trailerPrefix = "File Creation Time"

var exchangeCodes = map[string]models.ExchangeDetail{
	"N": models.ExchangeNYSE,
	"P": models.ExchangeNYSEArca,
	"A": models.ExchangeNYSEAmerican,
	"Z": models.ExchangeBATS,
}

var categoryCodes = map[string]models.MarketCategory{
	"Q": models.CategoryGlobalSelect,
	"G": models.CategoryGlobal,
	"S": models.CategoryCapital,
}

// Canonical trims and upper-cases a ticker.
func Canonical(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}

// IsTrailer reports whether a symbol cell holds the file footer rather than a ticker.
func IsTrailer(sym string) bool {
	return strings.HasPrefix(strings.TrimSpace(sym), trailerPrefix)
}

// ExchangeDetail maps the one-letter venue code of the other-listed feed.
// Unknown codes map to models.ExchangeUnknown and ok is false.
func ExchangeDetail(code string) (detail models.ExchangeDetail, ok bool) {
	if d, found := exchangeCodes[strings.ToUpper(strings.TrimSpace(code))]; found {
		return d, true
	}
	return models.ExchangeUnknown, false
}

// MarketCategory maps the NASDAQ tier code. An empty code is a valid "no
// category"; any other unknown code returns ok false.
func MarketCategory(code string) (models.MarketCategory, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.CategoryNone, true
	}
	if c, found := categoryCodes[code]; found {
		return c, true
	}
	return models.CategoryNone, false
}

// ParseExchangeDetail resolves a display label back to its venue, accepting
// any letter case. It is the inverse used when reading exports back in.
func ParseExchangeDetail(label string) (models.ExchangeDetail, bool) {
	label = strings.TrimSpace(label)
	for _, d := range models.ExchangeDetails() {
		if strings.EqualFold(string(d), label) {
			return d, true
		}
	}
	return "", false
}

// ParseMarketCategory resolves either a category label or its code.
func ParseMarketCategory(s string) (models.MarketCategory, bool) {
	s = strings.TrimSpace(s)
	for _, c := range []models.MarketCategory{models.CategoryGlobalSelect, models.CategoryGlobal, models.CategoryCapital} {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return MarketCategory(s)
}

// ParseSecurityType resolves "Stock" or "ETF" in any letter case.
func ParseSecurityType(s string) (models.SecurityType, bool) {
	for _, t := range models.SecurityTypes() {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return "", false
}
