package model

import "time"

// VenueKey is the canonical identifier for a physical venue, derived from
// free-text venue name and city. Two raw strings that normalize to the same
// key are treated as the same venue.
type VenueKey string

// UnknownVenueName is the sentinel name component used when a raw venue
// string normalizes to nothing.
const UnknownVenueName = "unknown-venue"

// Status is the resolution state of a venue.
type Status string

const (
	// StatusResolved means coordinates were found with confidence.
	StatusResolved Status = "resolved"
	// StatusUnresolved means the last lookup found nothing or failed.
	StatusUnresolved Status = "unresolved"
	// StatusTBA means the venue is intentionally not public yet; no lookup
	// is attempted until an operator requests one.
	StatusTBA Status = "tba"
)

// RawVenue is the free-text venue name and city as extracted from a single
// event record. Ephemeral, produced per scrape.
type RawVenue struct {
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

// GeocodeEntry is the persisted resolution result for a VenueKey. Exactly
// one entry exists per key; re-resolution replaces it.
type GeocodeEntry struct {
	Key         VenueKey  `json:"key"`
	Name        string    `json:"name"`
	City        string    `json:"city,omitempty"`
	Status      Status    `json:"status"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Approximate bool      `json:"approximate,omitempty"`
	Source      string    `json:"source,omitempty"`
	Query       string    `json:"query,omitempty"`
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"last_attempt,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// HasCoordinates reports whether the entry carries a usable map position.
func (e *GeocodeEntry) HasCoordinates() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// FreshnessPolicy decides when a cached entry may be trusted without a new
// external lookup.
type FreshnessPolicy struct {
	// UnresolvedRetryAfter is how long an unresolved entry suppresses
	// re-lookup. Zero or negative keeps unresolved entries fresh forever.
	UnresolvedRetryAfter time.Duration
}

// IsFresh reports whether entry is current under the policy. Resolved and
// TBA entries are permanently fresh: coordinates for a fixed venue do not
// change, and TBA venues are only re-attempted on explicit operator request.
// Unresolved entries go stale once the retry interval has elapsed, so
// transient failures eventually get another chance.
func (p FreshnessPolicy) IsFresh(entry *GeocodeEntry, now time.Time) bool {
	if entry == nil {
		return false
	}
	switch entry.Status {
	case StatusResolved, StatusTBA:
		return true
	case StatusUnresolved:
		if entry.LastAttempt.IsZero() {
			return false
		}
		if p.UnresolvedRetryAfter <= 0 {
			return true
		}
		return now.Sub(entry.LastAttempt) < p.UnresolvedRetryAfter
	default:
		return false
	}
}
