// Package extract recovers entity records and contact details from parsed
// listing pages. Page structure drifts over time, so extraction runs as an
// ordered chain of independent strategies: each is tried in turn and the
// first that yields any records wins for that document.
package extract

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/govcontacts/internal/model"
	"github.com/sells-group/govcontacts/internal/normalize"
)

// Strategy extracts candidate records from one parsed listing page.
// Records come back in document order, neither validated nor deduplicated.
type Strategy interface {
	Extract(doc *goquery.Document, pageURL string) []model.AgencyRecord
	Name() string
}

// Chain tries strategies in priority order.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain over the given strategies in order.
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// DefaultChain returns the standard three-layer chain: heading-anchor
// pairing, list-item pairing, keyword-filtered heading scan.
func DefaultChain() *Chain {
	return NewChain(
		&HeadingStrategy{},
		&ListStrategy{},
		&KeywordStrategy{},
	)
}

// Entities runs the chain against a document. The first strategy that
// yields a non-empty result wins; a page where every layer comes up empty
// contributes zero records, which the caller reports as a statistic.
func (c *Chain) Entities(doc *goquery.Document, pageURL string) []model.AgencyRecord {
	for _, s := range c.strategies {
		records := s.Extract(doc, pageURL)
		if len(records) > 0 {
			zap.L().Debug("extract: strategy matched",
				zap.String("strategy", s.Name()),
				zap.String("page", pageURL),
				zap.Int("records", len(records)),
			)
			return records
		}
		zap.L().Debug("extract: strategy yielded nothing, trying next",
			zap.String("strategy", s.Name()),
			zap.String("page", pageURL),
		)
	}
	return nil
}

// categoryMarkers are heading phrases that organize a page rather than
// name an entity.
var categoryMarkers = map[string]bool{
	"have a question?": true,
	"about":            true,
	"help":             true,
	"contact":          true,
	"on this page":     true,
}

// isSectionMarker reports whether heading text is page organization: a
// single alphabetic character (the dominant A-Z index convention) or a
// known boilerplate phrase.
func isSectionMarker(text string) bool {
	text = normalize.Name(text)
	if len(text) == 1 && unicode.IsLetter(rune(text[0])) {
		return true
	}
	return categoryMarkers[strings.ToLower(text)]
}

// crossHostURL resolves href against pageURL and returns the normalized
// absolute URL, or "" when the link stays on the listing page's own host.
// Internal "more info" links are not the entity's homepage.
func crossHostURL(href, pageURL string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
		return ""
	}
	resolved := normalize.URL(href, pageURL)
	if !strings.HasPrefix(resolved, "http://") && !strings.HasPrefix(resolved, "https://") {
		return ""
	}
	if normalize.Domain(resolved) == normalize.Domain(pageURL) {
		return ""
	}
	return resolved
}

// sectionFor falls back to the record name's first letter when no section
// marker context is available.
func sectionFor(current, name string) string {
	if current != "" {
		return current
	}
	name = normalize.Name(name)
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1])
}
