package model

// ExtraLink is a secondary link attached to an event (tickets, RSVP, etc).
type ExtraLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Event is one scraped event record as produced by the listing-site
// collaborator. Only Venue/City/Hidden matter to the resolution pipeline;
// the remaining fields ride along so enriched output can carry them.
type Event struct {
	Title      string      `json:"title"`
	URL        string      `json:"url,omitempty"`
	Hidden     bool        `json:"hidden,omitempty"`
	DateISO    string      `json:"dateISO,omitempty"`
	DayLabel   string      `json:"dayLabel,omitempty"`
	TimeRange  string      `json:"timeRange,omitempty"`
	Venue      string      `json:"venue"`
	City       string      `json:"city,omitempty"`
	Price      string      `json:"price,omitempty"`
	Age        string      `json:"age,omitempty"`
	Genres     []string    `json:"genres,omitempty"`
	Promoters  []string    `json:"promoters,omitempty"`
	ExtraLinks []ExtraLink `json:"extraLinks,omitempty"`
}

// RawVenue extracts the venue text from the event.
func (e Event) RawVenue() RawVenue {
	return RawVenue{Name: e.Venue, City: e.City}
}
