package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sf-events-map/venuegeo/internal/model"
	"github.com/sf-events-map/venuegeo/internal/report"
	"github.com/sf-events-map/venuegeo/internal/store"
)

var exportOutPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export unresolved venues to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.ListVenues(ctx, store.VenueFilter{
			Status: model.StatusUnresolved,
			Limit:  10000,
		})
		if err != nil {
			return err
		}

		if err := report.WriteUnresolved(exportOutPath, entries); err != nil {
			return err
		}
		fmt.Printf("wrote %d unresolved venues to %s\n", len(entries), exportOutPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutPath, "out", "unresolved-venues.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
