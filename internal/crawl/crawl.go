// Package crawl runs the incremental contact crawl: pull the least
// recently scraped websites for a level, fetch each site's homepage plus
// a few contact-like pages, extract emails and phones, and persist them
// under a per-site department. Each site is one atomic unit of work; an
// interrupted batch resumes where it left off because finished units are
// already committed and scheduled past.
package crawl

import (
	"bytes"
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/govcontacts/internal/extract"
	"github.com/sells-group/govcontacts/internal/fetcher"
	"github.com/sells-group/govcontacts/internal/model"
	"github.com/sells-group/govcontacts/internal/store"
)

// Options configures one crawl batch.
type Options struct {
	Level        model.Level
	BatchSize    int
	ContactLinks int // max contact-like sublinks fetched per site
}

// Engine drives contact extraction over scheduled websites.
type Engine struct {
	store   store.Store
	fetcher *fetcher.Fetcher
	opts    Options
}

// New creates an Engine.
func New(st store.Store, f *fetcher.Fetcher, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.ContactLinks <= 0 {
		opts.ContactLinks = 3
	}
	return &Engine{store: st, fetcher: f, opts: opts}
}

// Run processes one batch. Per-site failures advance the schedule and
// the failure counter but never abort the batch.
func (e *Engine) Run(ctx context.Context) (model.CrawlStats, error) {
	stats := model.CrawlStats{RunID: uuid.New().String(), StartedAt: time.Now().UTC()}
	log := zap.L().With(zap.String("run_id", stats.RunID), zap.String("level", string(e.opts.Level)))

	batch, err := e.store.NextBatch(ctx, e.opts.Level, e.opts.BatchSize)
	if err != nil {
		return stats, eris.Wrap(err, "crawl: load batch")
	}
	log.Info("crawl: starting batch", zap.Int("sites", len(batch)))

	for _, site := range batch {
		if ctx.Err() != nil {
			break
		}
		if err := e.processSite(ctx, site, &stats); err != nil {
			stats.SitesFailed++
			log.Warn("crawl: site failed",
				zap.String("domain", site.Domain),
				zap.Error(err),
			)
		} else {
			stats.SitesProcessed++
		}
		// Advance the schedule regardless of outcome so unreachable
		// sites rotate to the back instead of hot-looping.
		if err := e.store.TouchWebsite(ctx, site.ID, time.Now()); err != nil {
			return stats, eris.Wrap(err, "crawl: advance schedule")
		}
	}

	stats.FinishedAt = time.Now().UTC()
	log.Info("crawl: batch complete",
		zap.Int("processed", stats.SitesProcessed),
		zap.Int("failed", stats.SitesFailed),
		zap.Int("contacts_inserted", stats.ContactsInserted),
	)
	return stats, nil
}

func (e *Engine) processSite(ctx context.Context, site model.Website, stats *model.CrawlStats) error {
	baseURL := site.FullURL
	if baseURL == "" {
		baseURL = "https://" + site.Domain
	}

	body, err := e.fetcher.Get(ctx, baseURL)
	if err != nil {
		return eris.Wrapf(err, "crawl: fetch %s", baseURL)
	}
	stats.PagesFetched++

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return eris.Wrapf(err, "crawl: parse %s", baseURL)
	}

	set := extract.Contacts(doc)
	for _, link := range extract.ContactLinks(doc, baseURL, e.opts.ContactLinks) {
		page, err := e.fetcher.Get(ctx, link)
		if err != nil {
			zap.L().Debug("crawl: contact page fetch failed",
				zap.String("url", link),
				zap.Error(err),
			)
			continue
		}
		stats.PagesFetched++
		sub, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
		if err != nil {
			continue
		}
		set.Merge(extract.Contacts(sub))
	}

	stats.EmailsFound += len(set.Emails)
	stats.PhonesFound += len(set.Phones)
	if len(set.Emails) == 0 && len(set.Phones) == 0 {
		return nil
	}

	// Pattern-extracted contacts hang off a synthetic per-site
	// department named after the domain.
	deptID, err := e.store.UpsertDepartment(ctx, model.Department{
		JurisdictionID: site.JurisdictionID,
		Name:           site.Domain,
		Category:       "government_site",
		WebsiteURL:     baseURL,
	})
	if err != nil {
		return eris.Wrapf(err, "crawl: department for %s", site.Domain)
	}

	inserted, err := e.store.InsertContacts(ctx, deptID, set.Emails, set.Phones)
	if err != nil {
		return eris.Wrapf(err, "crawl: insert contacts for %s", site.Domain)
	}
	stats.ContactsInserted += inserted
	return nil
}
