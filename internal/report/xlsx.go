// Package report exports venue data for operator review.
package report

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sf-events-map/venuegeo/internal/model"
)

// WriteUnresolved writes an xlsx workbook listing venues an operator should
// follow up on, one row per entry.
func WriteUnresolved(path string, entries []model.GeocodeEntry) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Unresolved Venues")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{"Key", "Name", "City", "Status", "Query", "Attempts", "Last Attempt"} {
		header.AddCell().SetString(h)
	}

	for _, e := range entries {
		row := sheet.AddRow()
		row.AddCell().SetString(string(e.Key))
		row.AddCell().SetString(e.Name)
		row.AddCell().SetString(e.City)
		row.AddCell().SetString(string(e.Status))
		row.AddCell().SetString(e.Query)
		row.AddCell().SetString(strconv.Itoa(e.Attempts))
		if !e.LastAttempt.IsZero() {
			row.AddCell().SetString(e.LastAttempt.UTC().Format("2006-01-02 15:04:05"))
		} else {
			row.AddCell().SetString("")
		}
	}

	if err := file.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}
