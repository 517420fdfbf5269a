package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/govcontacts/internal/discover"
	"github.com/sells-group/govcontacts/internal/model"
)

var (
	discoverSeedsFile    string
	discoverFromLevel    string
	discoverSeedLimit    int
	discoverDefaultLevel string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover government sites linked from seed pages",
	Long:  "Fetches seed pages, collects links to government-looking domains on other hosts, and records each new domain as a jurisdiction with a website at the chosen level. Seeds come from a file or from websites already stored at a level.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("fetch"); err != nil {
			return err
		}

		defaultLevel := model.Level(discoverDefaultLevel)
		if !defaultLevel.Valid() {
			return eris.Errorf("unknown level %q", discoverDefaultLevel)
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var seeds []string
		switch {
		case discoverSeedsFile != "":
			seeds, err = readSeedFile(discoverSeedsFile)
			if err != nil {
				return err
			}
		case discoverFromLevel != "":
			level := model.Level(discoverFromLevel)
			if !level.Valid() {
				return eris.Errorf("unknown level %q", discoverFromLevel)
			}
			sites, err := st.WebsitesAtLevel(ctx, level, discoverSeedLimit)
			if err != nil {
				return err
			}
			for _, site := range sites {
				url := site.FullURL
				if url == "" {
					url = "https://" + site.Domain
				}
				seeds = append(seeds, url)
			}
		default:
			return eris.New("provide --seeds or --from-level")
		}
		if len(seeds) == 0 {
			return eris.New("no seed URLs")
		}

		crawler := discover.New(newFetcher(), discover.Options{
			HopLimit:       cfg.Discover.HopLimit,
			MaxPages:       cfg.Discover.MaxPages,
			Concurrency:    cfg.Discover.Concurrency,
			ExcludeDomains: cfg.Discover.ExcludeDomains,
		})
		domains, stats, err := crawler.Run(ctx, seeds)
		if err != nil {
			return err
		}

		inserted := 0
		for _, domain := range domains {
			jid, err := st.UpsertJurisdiction(ctx, model.Jurisdiction{
				Name:  domain,
				Level: defaultLevel,
			})
			if err != nil {
				return eris.Wrapf(err, "jurisdiction %s", domain)
			}
			if _, err := st.UpsertWebsite(ctx, model.Website{
				JurisdictionID: jid,
				Domain:         domain,
				FullURL:        "https://" + domain,
				SiteType:       model.SiteJurisdiction,
			}); err != nil {
				return eris.Wrapf(err, "website %s", domain)
			}
			inserted++
		}

		zap.L().Info("discovery complete",
			zap.String("run_id", stats.RunID),
			zap.Int("seeds", len(seeds)),
			zap.Int("pages_visited", stats.PagesVisited),
			zap.Int("fetch_failures", stats.FetchFailures),
			zap.Int("domains_found", stats.DomainsFound),
			zap.Int("websites_upserted", inserted),
			zap.String("level", discoverDefaultLevel),
		)
		return nil
	},
}

// readSeedFile reads one URL per line, skipping blanks and # comments.
func readSeedFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var seeds []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "read %s", path)
	}
	return seeds, nil
}

func init() {
	discoverCmd.Flags().StringVar(&discoverSeedsFile, "seeds", "", "file with one seed URL per line")
	discoverCmd.Flags().StringVar(&discoverFromLevel, "from-level", "", "seed from stored websites at this level")
	discoverCmd.Flags().IntVar(&discoverSeedLimit, "limit", 100, "max seeds taken from the store")
	discoverCmd.Flags().StringVar(&discoverDefaultLevel, "default-level", "local", "level assigned to discovered sites")
	rootCmd.AddCommand(discoverCmd)
}
