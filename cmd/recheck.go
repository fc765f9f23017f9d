package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sf-events-map/venuegeo/internal/model"
)

var recheckCmd = &cobra.Command{
	Use:   "recheck <venue-key>...",
	Short: "Flag cached venues for re-resolution on the next batch",
	Long:  "Marks entries stale so the next resolve run attempts them again. This is the only way a TBA venue gets another lookup.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		for _, arg := range args {
			if err := st.MarkForRetry(ctx, model.VenueKey(arg)); err != nil {
				return err
			}
			fmt.Printf("marked for retry: %s\n", arg)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recheckCmd)
}
