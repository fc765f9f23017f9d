package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sf-events-map/venuegeo/internal/model"
)

var statusBatches int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cache counts and recent batch runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.CountByStatus(ctx)
		if err != nil {
			return err
		}

		total := 0
		for _, n := range counts {
			total += n
		}
		fmt.Printf("Cached venues: %d\n", total)
		for _, s := range []model.Status{model.StatusResolved, model.StatusUnresolved, model.StatusTBA} {
			fmt.Printf("  %-10s %d\n", s, counts[s])
		}

		batches, err := st.ListBatches(ctx, statusBatches)
		if err != nil {
			return err
		}
		if len(batches) > 0 {
			fmt.Println("\nRecent batches:")
			for _, b := range batches {
				fmt.Printf("  %s  %s  events=%d venues=%d hits=%d resolved=%d unresolved=%d tba=%d\n",
					b.StartedAt.Format("2006-01-02 15:04"), b.ID,
					b.Events, b.DistinctVenues, b.Hits, b.Resolved, b.Unresolved, b.TBA)
			}
		}

		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusBatches, "batches", 5, "number of recent batches to show")
	rootCmd.AddCommand(statusCmd)
}
