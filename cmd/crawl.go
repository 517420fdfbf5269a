package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/govcontacts/internal/crawl"
	"github.com/sells-group/govcontacts/internal/model"
)

var (
	crawlLevel     string
	crawlBatchSize int
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl scheduled websites for contact details",
	Long:  "Takes the least-recently-crawled websites at a level, fetches each homepage plus a few contact pages, and stores any emails and phone numbers found. Every site commits on its own, so an interrupted run picks up where it stopped.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		level := model.Level(crawlLevel)
		if !level.Valid() {
			return eris.Errorf("unknown level %q", crawlLevel)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		batchSize := crawlBatchSize
		if batchSize == 0 {
			batchSize = cfg.Crawl.BatchSize
		}
		eng := crawl.New(st, newFetcher(), crawl.Options{
			Level:        level,
			BatchSize:    batchSize,
			ContactLinks: cfg.Crawl.ContactLinks,
		})

		stats, err := eng.Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("crawl complete",
			zap.String("run_id", stats.RunID),
			zap.Int("processed", stats.SitesProcessed),
			zap.Int("failed", stats.SitesFailed),
			zap.Int("pages", stats.PagesFetched),
			zap.Int("emails", stats.EmailsFound),
			zap.Int("phones", stats.PhonesFound),
			zap.Int("contacts_inserted", stats.ContactsInserted),
		)
		return nil
	},
}

func init() {
	crawlCmd.Flags().StringVar(&crawlLevel, "level", "state", "government level to crawl")
	crawlCmd.Flags().IntVar(&crawlBatchSize, "batch-size", 0, "sites per run (default from config)")
	rootCmd.AddCommand(crawlCmd)
}
