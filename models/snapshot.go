package models

import "time"

// Snapshot is the immutable result of one fetch and normalize cycle.
// Accessors hand out copies so callers can never alter the cached table.
type Snapshot struct {
	id          string
	source      string
	retrievedAt time.Time
	listings    []Listing
}

// NewSnapshot copies listings into a new snapshot.
func NewSnapshot(id, source string, retrievedAt time.Time, listings []Listing) *Snapshot {
	owned := make([]Listing, len(listings))
	copy(owned, listings)
	return &Snapshot{
		id:          id,
		source:      source,
		retrievedAt: retrievedAt,
		listings:    owned,
	}
}

func (s *Snapshot) ID() string { return s.id }

// Source names the transport the feeds were downloaded with.
func (s *Snapshot) Source() string { return s.source }

func (s *Snapshot) RetrievedAt() time.Time { return s.retrievedAt }

func (s *Snapshot) Len() int { return len(s.listings) }

// Listings returns a copy of the canonical table.
func (s *Snapshot) Listings() []Listing {
	out := make([]Listing, len(s.listings))
	copy(out, s.listings)
	return out
}

// Nasdaq returns the rows that came from the NASDAQ feed.
func (s *Snapshot) Nasdaq() []Listing {
	return s.byPrimary(PrimaryNasdaq)
}

// Other returns the rows that came from the other-listed feed.
func (s *Snapshot) Other() []Listing {
	return s.byPrimary(PrimaryOther)
}

func (s *Snapshot) byPrimary(p PrimaryExchange) []Listing {
	out := make([]Listing, 0, len(s.listings))
	for _, l := range s.listings {
		if l.Primary == p {
			out = append(out, l)
		}
	}
	return out
}
