package model

import "time"

// Outcome classifies what happened to one VenueKey during a batch run.
type Outcome string

const (
	OutcomeHit        Outcome = "hit"        // fresh cache entry, no lookup
	OutcomeResolved   Outcome = "resolved"   // fresh lookup found coordinates
	OutcomeUnresolved Outcome = "unresolved" // lookup failed or no match
	OutcomeTBA        Outcome = "tba"        // TBA pattern, lookup skipped
)

// BatchReport summarizes one resolution run over a set of ingested events.
// Counts and the unresolved key list are persisted for operator follow-up;
// Outcomes is per-run detail and is not stored.
type BatchReport struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Events         int       `json:"events"`
	DistinctVenues int       `json:"distinct_venues"`
	Hits           int       `json:"hits"`
	Resolved       int       `json:"resolved"`
	Unresolved     int       `json:"unresolved"`
	TBA            int       `json:"tba"`

	UnresolvedKeys []VenueKey `json:"unresolved_keys,omitempty"`

	Outcomes map[VenueKey]Outcome `json:"-"`
}

// Count records an outcome for a key, updating the matching counter.
func (r *BatchReport) Count(key VenueKey, outcome Outcome) {
	if r.Outcomes == nil {
		r.Outcomes = make(map[VenueKey]Outcome)
	}
	r.Outcomes[key] = outcome

	switch outcome {
	case OutcomeHit:
		r.Hits++
	case OutcomeResolved:
		r.Resolved++
	case OutcomeUnresolved:
		r.Unresolved++
		r.UnresolvedKeys = append(r.UnresolvedKeys, key)
	case OutcomeTBA:
		r.TBA++
	}
}
