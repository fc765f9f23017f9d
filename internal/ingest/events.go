// Package ingest loads scraped event records for a resolution run.
package ingest

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sf-events-map/venuegeo/internal/model"
)

// LoadEvents reads a JSON array of events from path, as emitted by the
// listing-site scraper.
func LoadEvents(path string) ([]model.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read %s", path)
	}

	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, eris.Wrapf(err, "ingest: parse %s", path)
	}
	return events, nil
}
