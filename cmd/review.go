package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/proposal-intel/internal/model"
)

var approveCmd = &cobra.Command{
	Use:   "approve <document-id>",
	Short: "Approve an extracted document, creating a lead and quote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		imp, st, err := initImporter(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		reviewedBy, _ := cmd.Flags().GetString("reviewed-by")
		notes, _ := cmd.Flags().GetString("notes")

		edits, err := loadEdits(cmd)
		if err != nil {
			return err
		}

		res, err := imp.ApproveDocument(ctx, args[0], reviewedBy, edits, notes)
		if err != nil {
			return eris.Wrapf(err, "approve %s", args[0])
		}

		fmt.Printf("Approved %s\n", res.Document.ID)
		fmt.Printf("  lead %s: %s (%s, %d%%)\n",
			res.Lead.ID, res.Lead.Name, res.Lead.DealStage, res.Lead.Probability)
		fmt.Printf("  quote %s: %s, %.2f %s\n",
			res.Quote.ID, res.Quote.QuoteNumber, res.Quote.TotalPrice, res.Quote.Currency)
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <document-id>",
	Short: "Reject an extracted document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		imp, st, err := initImporter(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		reviewedBy, _ := cmd.Flags().GetString("reviewed-by")
		notes, _ := cmd.Flags().GetString("notes")

		doc, err := imp.RejectDocument(ctx, args[0], reviewedBy, notes)
		if err != nil {
			return eris.Wrapf(err, "reject %s", args[0])
		}

		fmt.Printf("Rejected %s\n", doc.ID)
		return nil
	},
}

// loadEdits reads reviewer corrections from the --edits JSON file, if given.
func loadEdits(cmd *cobra.Command) (*model.ExtractedQuoteData, error) {
	path, _ := cmd.Flags().GetString("edits")
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read edits file %s", path)
	}

	var edits model.ExtractedQuoteData
	if err := json.Unmarshal(raw, &edits); err != nil {
		return nil, eris.Wrapf(err, "parse edits file %s", path)
	}
	return &edits, nil
}

func init() {
	for _, c := range []*cobra.Command{approveCmd, rejectCmd} {
		c.Flags().String("reviewed-by", "", "reviewer identifier")
		c.Flags().String("notes", "", "review notes")
	}
	approveCmd.Flags().String("edits", "", "path to a JSON file of field corrections")

	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
}
