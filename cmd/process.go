package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/proposal-intel/internal/model"
)

var processCmd = &cobra.Command{
	Use:   "process [document-id]",
	Short: "Run extraction for one document or all pending",
	Long: `Fetches document details from the provider and extracts structured
quote data: the vision pipeline when an Anthropic key is configured, else
provider fields corroborated by the deterministic PDF text parser.

With a document id, processes that document and rethrows any failure.
With --all, sweeps every pending document, absorbing individual failures.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		all, _ := cmd.Flags().GetBool("all")

		if !all && len(args) == 0 {
			return eris.New("pass a document id or --all")
		}

		imp, st, err := initImporter(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if all {
			summary, err := imp.ProcessAllPending(ctx)
			if err != nil {
				return eris.Wrap(err, "process all")
			}
			fmt.Printf("Processed %d documents, %d failed\n", summary.Processed, summary.Failed)
			return nil
		}

		doc, err := imp.ProcessDocument(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "process %s", args[0])
		}
		printDocument(doc)
		return nil
	},
}

func printDocument(doc *model.Document) {
	fmt.Printf("Document %s (%s): %s, confidence %.0f\n",
		doc.ID, doc.ExternalID, doc.ImportStatus, doc.ExtractionConfidence)
	if doc.ExtractedData == nil {
		return
	}
	d := doc.ExtractedData
	fmt.Printf("  client: %s  total: %.2f %s  line items: %d\n",
		d.ClientName, d.TotalPrice, d.Currency, len(d.LineItems))
	for _, note := range d.ExtractionNotes {
		fmt.Printf("  note: %s\n", note)
	}
}

func init() {
	processCmd.Flags().Bool("all", false, "process every pending document")
	rootCmd.AddCommand(processCmd)
}
