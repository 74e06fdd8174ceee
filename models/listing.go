package models

import (
	"time"
)

// PrimaryExchange identifies which directory feed a listing came from.
type PrimaryExchange string

const (
	PrimaryNasdaq PrimaryExchange = "NASDAQ"
	PrimaryOther  PrimaryExchange = "OTHER"
)

// ExchangeDetail is the venue a security is listed on.
type ExchangeDetail string

const (
	ExchangeNasdaq       ExchangeDetail = "NASDAQ"
	ExchangeNYSE         ExchangeDetail = "NYSE"
	ExchangeNYSEArca     ExchangeDetail = "NYSE Arca"
	ExchangeNYSEAmerican ExchangeDetail = "NYSE American"
	ExchangeBATS         ExchangeDetail = "BATS/CBOE"
	// ExchangeUnknown is used for venue codes outside the lookup table.
	ExchangeUnknown ExchangeDetail = "Unknown"
)

var exchangeDetails = []ExchangeDetail{
	ExchangeNasdaq,
	ExchangeNYSE,
	ExchangeNYSEArca,
	ExchangeNYSEAmerican,
	ExchangeBATS,
	ExchangeUnknown,
}

// ExchangeDetails returns every venue value a listing can carry.
func ExchangeDetails() []ExchangeDetail {
	out := make([]ExchangeDetail, len(exchangeDetails))
	copy(out, exchangeDetails)
	return out
}

// Valid reports whether e is one of the enumerated venues.
func (e ExchangeDetail) Valid() bool {
	for _, v := range exchangeDetails {
		if v == e {
			return true
		}
	}
	return false
}

// SecurityType is the Stock/ETF classification derived from the ETF flag.
type SecurityType string

const (
	TypeStock SecurityType = "Stock"
	TypeETF   SecurityType = "ETF"
)

// SecurityTypes lists the classifications in display order.
func SecurityTypes() []SecurityType {
	return []SecurityType{TypeStock, TypeETF}
}

// Valid reports whether t is Stock or ETF.
func (t SecurityType) Valid() bool {
	return t == TypeStock || t == TypeETF
}

// MarketCategory is the NASDAQ tier. The zero value means no category,
// which is the case for every listing that did not come from the NASDAQ feed.
type MarketCategory string

const (
	CategoryNone         MarketCategory = ""
	CategoryGlobalSelect MarketCategory = "Global Select"
	CategoryGlobal       MarketCategory = "Global"
	CategoryCapital      MarketCategory = "Capital"
)

// Code returns the single-letter code the NASDAQ feed uses for the category.
func (c MarketCategory) Code() string {
	switch c {
	case CategoryGlobalSelect:
		return "Q"
	case CategoryGlobal:
		return "G"
	case CategoryCapital:
		return "S"
	default:
		return ""
	}
}

// Description is the long market name shown next to category counts.
func (c MarketCategory) Description() string {
	if c == CategoryNone {
		return ""
	}
	return "NASDAQ " + string(c) + " Market"
}

// Listing is one row of the canonical table.
type Listing struct {
	Symbol      string          `json:"symbol"`
	Name        string          `json:"security_name"`
	IsETF       bool            `json:"etf"`
	Primary     PrimaryExchange `json:"exchange"`
	Exchange    ExchangeDetail  `json:"exchange_detail"`
	Category    MarketCategory  `json:"market_category,omitempty"`
	TestIssue   bool            `json:"test_issue,omitempty"`
	RetrievedAt time.Time       `json:"retrieved_at"`
}

// Type derives the Stock/ETF classification.
func (l Listing) Type() SecurityType {
	if l.IsETF {
		return TypeETF
	}
	return TypeStock
}
