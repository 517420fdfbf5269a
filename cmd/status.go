package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show row counts and crawl coverage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.Counts(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Database: %s\n", cfg.Store.Path)
		fmt.Printf("  jurisdictions: %d\n", counts["jurisdictions"])
		fmt.Printf("  departments:   %d\n", counts["departments"])
		fmt.Printf("  contacts:      %d\n", counts["contacts"])
		fmt.Printf("  websites:      %d\n", counts["websites"])

		total := counts["websites"]
		crawled := counts["websites_crawled"]
		pct := 0.0
		if total > 0 {
			pct = float64(crawled) / float64(total) * 100
		}
		fmt.Printf("  crawled:       %d/%d (%.1f%%)\n", crawled, total, pct)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
