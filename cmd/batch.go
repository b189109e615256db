package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Manage import batches",
}

var batchCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new import batch",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		imp, st, err := initImporter(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		name, _ := cmd.Flags().GetString("name")
		createdBy, _ := cmd.Flags().GetString("created-by")

		batch, err := imp.CreateBatch(ctx, name, createdBy)
		if err != nil {
			return eris.Wrap(err, "batch create")
		}

		fmt.Printf("Created batch %s (%s)\n", batch.ID, batch.Name)
		return nil
	},
}

var batchStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Sync provider documents into a batch",
	Long: `Pages through the PandaDoc document listing for the date range and
upserts one document row per result, keyed by the provider document id.
Re-running over the same range creates no duplicates.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		imp, st, err := initImporter(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		batchID, _ := cmd.Flags().GetString("batch")
		if batchID == "" {
			name, _ := cmd.Flags().GetString("name")
			batch, err := imp.CreateBatch(ctx, name, "")
			if err != nil {
				return eris.Wrap(err, "batch start: create")
			}
			batchID = batch.ID
			zap.L().Info("created batch", zap.String("batch_id", batchID))
		}

		dateFrom, err := parseDateFlag(cmd, "from")
		if err != nil {
			return err
		}
		dateTo, err := parseDateFlag(cmd, "to")
		if err != nil {
			return err
		}

		result, err := imp.StartImport(ctx, batchID, dateFrom, dateTo)
		if err != nil {
			return eris.Wrap(err, "batch start")
		}

		fmt.Printf("Batch %s: %d documents found, %d imported\n",
			batchID, result.DocumentsFound, result.DocumentsImported)
		return nil
	},
}

// parseDateFlag reads a YYYY-MM-DD flag; empty means unbounded.
func parseDateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "parse --%s", name)
	}
	return t, nil
}

func init() {
	batchCreateCmd.Flags().String("name", "", "batch name (default: timestamped)")
	batchCreateCmd.Flags().String("created-by", "", "operator identifier")

	batchStartCmd.Flags().String("batch", "", "existing batch ID (default: create one)")
	batchStartCmd.Flags().String("name", "", "name for an implicitly created batch")
	batchStartCmd.Flags().String("from", "", "start of the created-date range (YYYY-MM-DD)")
	batchStartCmd.Flags().String("to", "", "end of the created-date range (YYYY-MM-DD)")

	batchCmd.AddCommand(batchCreateCmd)
	batchCmd.AddCommand(batchStartCmd)
	rootCmd.AddCommand(batchCmd)
}
