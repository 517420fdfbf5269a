package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/govcontacts/internal/ingest"
)

var ingestCSVPath string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load an agency CSV into the directory",
	Long:  "Reads a headered CSV of agencies (agency_name, homepage_url, section, parent_department), validates and deduplicates the rows, and upserts them as federal departments with websites. Running the same file twice changes nothing.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		f, err := os.Open(ingestCSVPath)
		if err != nil {
			return eris.Wrapf(err, "open %s", ingestCSVPath)
		}
		defer f.Close()

		records, err := ingest.LoadCSV(f)
		if err != nil {
			return err
		}

		stats, err := ingest.New(st).Run(ctx, records)
		if err != nil {
			return err
		}

		zap.L().Info("ingest complete",
			zap.String("csv", ingestCSVPath),
			zap.Int("rows", stats.RowsRead),
			zap.Int("valid", stats.Validation.ValidCount),
			zap.Int("invalid", stats.Validation.InvalidCount),
			zap.Int("duplicates_removed", stats.Deduplication.DuplicatesRemoved),
			zap.Int("departments", stats.DepartmentsUps),
			zap.Int("websites", stats.WebsitesUps),
		)
		for _, issue := range stats.Validation.Issues {
			zap.L().Warn("validation issue", zap.String("issue", issue))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCSVPath, "csv", "", "path to agencies CSV (required)")
	_ = ingestCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(ingestCmd)
}
