package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/proposal-intel/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show document counts by import status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		imp, st, err := initImporter(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := imp.GetStats(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		order := []model.ImportStatus{
			model.ImportStatusPending,
			model.ImportStatusFetching,
			model.ImportStatusExtracted,
			model.ImportStatusApproved,
			model.ImportStatusRejected,
			model.ImportStatusError,
		}
		for _, s := range order {
			fmt.Printf("%-10s %d\n", s, counts[s])
		}
		fmt.Printf("%-10s %d\n", "total", counts.Total())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
