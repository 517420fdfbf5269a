package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/govcontacts/internal/model"
	"github.com/sells-group/govcontacts/internal/normalize"
)

// HeadingStrategy pairs each heading with the nearest following sibling
// that contains a cross-host link. Headings matching the section-marker
// convention update the current section context instead of becoming
// entities.
type HeadingStrategy struct{}

func (s *HeadingStrategy) Name() string { return "heading_anchor" }

func (s *HeadingStrategy) Extract(doc *goquery.Document, pageURL string) []model.AgencyRecord {
	var records []model.AgencyRecord
	section := ""

	doc.Find("h2, h3").Each(func(_ int, heading *goquery.Selection) {
		text := normalize.Name(heading.Text())
		if text == "" {
			return
		}
		if isSectionMarker(text) {
			if len(text) == 1 {
				section = strings.ToUpper(text)
			}
			return
		}

		url := followingSiblingURL(heading, pageURL)
		if url == "" {
			url = model.UnresolvedURL
		}

		records = append(records, model.AgencyRecord{
			Name:    text,
			URL:     url,
			Section: sectionFor(section, text),
		})
	})

	// A scan that produced only unresolved records means the page does not
	// follow the heading-anchor convention at all; let the next layer try.
	if allUnresolved(records) {
		return nil
	}
	return records
}

// followingSiblingURL walks the heading's following siblings up to the
// next heading, returning the first cross-host anchor found.
func followingSiblingURL(heading *goquery.Selection, pageURL string) string {
	for sib := heading.Next(); sib.Length() > 0; sib = sib.Next() {
		if isHeadingTag(goquery.NodeName(sib)) {
			return ""
		}
		url := ""
		if goquery.NodeName(sib) == "a" {
			if href, ok := sib.Attr("href"); ok {
				if resolved := crossHostURL(href, pageURL); resolved != "" {
					return resolved
				}
			}
		}
		sib.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if resolved := crossHostURL(href, pageURL); resolved != "" {
				url = resolved
				return false
			}
			return true
		})
		if url != "" {
			return url
		}
	}
	return ""
}

func isHeadingTag(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

func allUnresolved(records []model.AgencyRecord) bool {
	for _, r := range records {
		if r.URL != model.UnresolvedURL {
			return false
		}
	}
	return true
}

// ListStrategy treats each list item's first usable anchor as one entity:
// name from the anchor text, URL from its href. Single-letter headings
// seen along the way still update the section context.
type ListStrategy struct{}

func (s *ListStrategy) Name() string { return "list_item" }

func (s *ListStrategy) Extract(doc *goquery.Document, pageURL string) []model.AgencyRecord {
	var records []model.AgencyRecord
	section := ""

	doc.Find("h1, h2, h3, li").Each(func(_ int, sel *goquery.Selection) {
		if isHeadingTag(goquery.NodeName(sel)) {
			text := normalize.Name(sel.Text())
			if isSectionMarker(text) && len(text) == 1 {
				section = strings.ToUpper(text)
			}
			return
		}

		a := sel.Find("a[href]").First()
		if a.Length() == 0 {
			return
		}
		name := normalize.Name(a.Text())
		if name == "" || isSectionMarker(name) {
			return
		}

		href, _ := a.Attr("href")
		url := crossHostURL(href, pageURL)
		if url == "" {
			url = model.UnresolvedURL
		}

		records = append(records, model.AgencyRecord{
			Name:    name,
			URL:     url,
			Section: sectionFor(section, name),
		})
	})

	return records
}

// orgKeywords mark a heading as naming an organizational unit. Matching
// is whole-word on the normalized heading text.
var orgKeywords = []string{
	"Department", "Bureau", "Commission", "Agency", "Office",
	"Administration", "Institute", "Foundation", "Corporation",
	"Board", "Authority", "Service", "Command",
}

// KeywordStrategy is the fallback of last resort: any heading containing
// an organizational keyword becomes an entity, URL resolved when a
// cross-host sibling link exists and marked unresolved otherwise.
type KeywordStrategy struct{}

func (s *KeywordStrategy) Name() string { return "keyword_heading" }

func (s *KeywordStrategy) Extract(doc *goquery.Document, pageURL string) []model.AgencyRecord {
	var records []model.AgencyRecord
	section := ""

	doc.Find("h1, h2, h3, h4").Each(func(_ int, heading *goquery.Selection) {
		text := normalize.Name(heading.Text())
		if text == "" {
			return
		}
		if isSectionMarker(text) {
			if len(text) == 1 {
				section = strings.ToUpper(text)
			}
			return
		}
		if !containsOrgKeyword(text) {
			return
		}

		url := followingSiblingURL(heading, pageURL)
		if url == "" {
			url = model.UnresolvedURL
		}

		records = append(records, model.AgencyRecord{
			Name:    text,
			URL:     url,
			Section: sectionFor(section, text),
		})
	})

	return records
}

func containsOrgKeyword(text string) bool {
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, ",.()")
		for _, kw := range orgKeywords {
			if strings.EqualFold(word, kw) {
				return true
			}
		}
	}
	return false
}
