package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/govcontacts/internal/export"
	"github.com/sells-group/govcontacts/internal/extract"
	"github.com/sells-group/govcontacts/internal/ingest"
	"github.com/sells-group/govcontacts/internal/model"
)

var (
	scrapeIndexURL    string
	scrapeIndexOutDir string
	scrapeIndexDryRun bool
)

var scrapeIndexCmd = &cobra.Command{
	Use:   "scrape-index",
	Short: "Extract agencies from a listing page",
	Long:  "Fetches an A-Z agency listing page, extracts entities with the layered heuristics, persists them like ingest does, and writes timestamped CSV and JSON snapshots.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		body, err := newFetcher().Get(ctx, scrapeIndexURL)
		if err != nil {
			return eris.Wrapf(err, "fetch %s", scrapeIndexURL)
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return eris.Wrap(err, "parse listing page")
		}

		records := extract.DefaultChain().Entities(doc, scrapeIndexURL)
		if len(records) == 0 {
			return eris.Errorf("no entities extracted from %s", scrapeIndexURL)
		}
		zap.L().Info("extraction complete",
			zap.String("url", scrapeIndexURL),
			zap.Int("records", len(records)),
		)

		stamp := time.Now().Format("20060102_150405")
		if err := os.MkdirAll(scrapeIndexOutDir, 0o755); err != nil {
			return eris.Wrap(err, "create output dir")
		}
		csvPath := filepath.Join(scrapeIndexOutDir, fmt.Sprintf("agencies_%s.csv", stamp))
		jsonPath := filepath.Join(scrapeIndexOutDir, fmt.Sprintf("agencies_%s.json", stamp))
		if err := writeSnapshot(csvPath, jsonPath, records); err != nil {
			return err
		}
		zap.L().Info("snapshots written",
			zap.String("csv", csvPath),
			zap.String("json", jsonPath),
		)

		if scrapeIndexDryRun {
			return nil
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stats, err := ingest.New(st).Run(ctx, records)
		if err != nil {
			return err
		}
		zap.L().Info("persisted",
			zap.Int("departments", stats.DepartmentsUps),
			zap.Int("websites", stats.WebsitesUps),
			zap.Int("invalid", stats.Validation.InvalidCount),
		)
		return nil
	},
}

func writeSnapshot(csvPath, jsonPath string, records []model.AgencyRecord) error {
	cf, err := os.Create(csvPath)
	if err != nil {
		return eris.Wrap(err, "create csv snapshot")
	}
	defer cf.Close()
	if err := export.RecordsCSV(cf, records); err != nil {
		return err
	}

	jf, err := os.Create(jsonPath)
	if err != nil {
		return eris.Wrap(err, "create json snapshot")
	}
	defer jf.Close()
	return export.RecordsJSON(jf, records)
}

func init() {
	scrapeIndexCmd.Flags().StringVar(&scrapeIndexURL, "url", "https://www.usa.gov/agency-index", "listing page URL")
	scrapeIndexCmd.Flags().StringVar(&scrapeIndexOutDir, "out", "scraped_data", "snapshot output directory")
	scrapeIndexCmd.Flags().BoolVar(&scrapeIndexDryRun, "dry-run", false, "extract and snapshot without persisting")
	rootCmd.AddCommand(scrapeIndexCmd)
}
