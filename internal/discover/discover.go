// Package discover expands site coverage by following outbound links from
// known government pages. Discovery works at domain granularity: the
// output is a set of government-like domains, not pages.
package discover

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/govcontacts/internal/fetcher"
	"github.com/sells-group/govcontacts/internal/model"
	"github.com/sells-group/govcontacts/internal/normalize"
)

// Options bounds one discovery run. Defaults are conservative; the
// source scripts disagreed wildly on these, so they are configuration,
// not constants.
type Options struct {
	HopLimit    int // extra hops past the seeds; 0 = seeds only
	MaxPages    int // total fetch ceiling across all hops
	Concurrency int // parallel fetches; per-host pacing still holds
	// ExcludeDomains are never reported: the aggregator a crawl starts
	// from links to itself everywhere.
	ExcludeDomains []string
}

// Crawler discovers government domains reachable from seed pages.
type Crawler struct {
	fetcher  *fetcher.Fetcher
	opts     Options
	classify func(domain string) bool
}

// New creates a Crawler over the shared fetcher.
func New(f *fetcher.Fetcher, opts Options) *Crawler {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Crawler{fetcher: f, opts: opts, classify: IsGovernmentDomain}
}

// Run fetches each seed (breadth-first across hops), extracts outbound
// links, and returns every newly classified government domain, sorted.
// Individual fetch failures are counted and skipped; only queue
// exhaustion, the page ceiling, or the hop limit ends the run.
func (c *Crawler) Run(ctx context.Context, seeds []string) ([]string, model.DiscoveryStats, error) {
	stats := model.DiscoveryStats{RunID: uuid.New().String(), StartedAt: time.Now().UTC()}

	excluded := make(map[string]bool, len(c.opts.ExcludeDomains)*2)
	for _, d := range c.opts.ExcludeDomains {
		d = normalize.Domain(d)
		excluded[d] = true
		excluded["www."+d] = true
	}

	var (
		mu      sync.Mutex
		found   = make(map[string]bool)
		visited = make(map[string]bool)
	)

	frontier := make([]string, 0, len(seeds))
	for _, s := range seeds {
		u := normalize.URL(s, "")
		if u != "" && !visited[u] {
			visited[u] = true
			frontier = append(frontier, u)
		}
	}

	for hop := 0; hop <= c.opts.HopLimit && len(frontier) > 0; hop++ {
		if stats.PagesVisited >= c.opts.MaxPages {
			break
		}
		budget := c.opts.MaxPages - stats.PagesVisited
		if len(frontier) > budget {
			frontier = frontier[:budget]
		}

		var next []string
		g, gCtx := errgroup.WithContext(ctx)
		g.SetLimit(c.opts.Concurrency)

		for _, pageURL := range frontier {
			g.Go(func() error {
				body, err := c.fetcher.Get(gCtx, pageURL)

				mu.Lock()
				defer mu.Unlock()
				stats.PagesVisited++
				if hop == 0 {
					stats.SeedsFetched++
				}
				if err != nil {
					stats.FetchFailures++
					zap.L().Debug("discover: fetch failed, skipping",
						zap.String("url", pageURL),
						zap.Error(err),
					)
					return nil
				}

				domains, internal := c.extractLinks(pageURL, body, excluded)
				for _, d := range domains {
					found[d] = true
				}
				if hop < c.opts.HopLimit && c.classify(normalize.Domain(pageURL)) {
					for _, link := range internal {
						if !visited[link] {
							visited[link] = true
							next = append(next, link)
						}
					}
				}
				return nil
			})
		}
		// Workers only return nil; Wait just joins them.
		_ = g.Wait()
		if ctx.Err() != nil {
			break
		}
		frontier = next
	}

	domains := make([]string, 0, len(found))
	for d := range found {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	stats.DomainsFound = len(domains)
	stats.FinishedAt = time.Now().UTC()
	return domains, stats, nil
}

// extractLinks parses the page and splits its anchors into newly
// classified government domains and same-site links usable as the next
// hop's frontier.
func (c *Crawler) extractLinks(pageURL string, body []byte, excluded map[string]bool) (domains, internal []string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		zap.L().Debug("discover: unparseable page", zap.String("url", pageURL), zap.Error(err))
		return nil, nil
	}

	pageDomain := normalize.Domain(pageURL)
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		resolved := normalize.URL(href, pageURL)
		if !strings.HasPrefix(resolved, "http://") && !strings.HasPrefix(resolved, "https://") {
			return
		}
		domain := normalize.Domain(resolved)
		if domain == "" || excluded[domain] || excluded["www."+domain] {
			return
		}
		if domain == pageDomain {
			if !seen["@"+resolved] {
				seen["@"+resolved] = true
				internal = append(internal, resolved)
			}
			return
		}
		if !c.classify(domain) || seen[domain] {
			return
		}
		seen[domain] = true
		domains = append(domains, domain)
	})

	return domains, internal
}

// govKeywords mark hosts that look municipal without a .gov/.us suffix.
var govKeywords = []string{"city", "county", "state", "municipal", "township"}

// IsGovernmentDomain classifies a bare domain as government-like by
// suffix or keyword.
func IsGovernmentDomain(domain string) bool {
	if domain == "" {
		return false
	}
	if strings.HasSuffix(domain, ".gov") || strings.HasSuffix(domain, ".us") {
		return true
	}
	for _, kw := range govKeywords {
		if strings.Contains(domain, kw) {
			return true
		}
	}
	return false
}
