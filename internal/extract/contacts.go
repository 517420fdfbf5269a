package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/govcontacts/internal/normalize"
)

var (
	emailRe = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)

	// "jane [at] example [dot] gov", with optional whitespace and any
	// number of [dot] groups in the domain.
	obfuscatedRe = regexp.MustCompile(`(?i)\b([a-z0-9._%+-]+)\s*\[\s*at\s*\]\s*((?:[a-z0-9-]+\s*\[\s*dot\s*\]\s*)+[a-z]{2,})\b`)
	dotRe        = regexp.MustCompile(`(?i)\s*\[\s*dot\s*\]\s*`)

	// North American phone formats; no semantic canonicalization.
	phoneRes = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
		regexp.MustCompile(`\(\d{3}\)\s*\d{3}-\d{4}`),
		regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{4}\b`),
		regexp.MustCompile(`\b1-\d{3}-\d{3}-\d{4}\b`),
	}
)

// ContactSet holds deduplicated emails and phones from one page, sorted
// for deterministic output.
type ContactSet struct {
	Emails []string
	Phones []string
}

// Merge unions another set into this one.
func (c *ContactSet) Merge(other ContactSet) {
	c.Emails = unionSorted(c.Emails, other.Emails)
	c.Phones = unionSorted(c.Phones, other.Phones)
}

// Contacts extracts emails and phone numbers from a parsed page: plain
// regex over the page text, de-obfuscated "[at]/[dot]" forms, and mailto
// anchor hrefs. The mailto pass is additive to the text pass; obfuscated
// addresses in anchor text are not valid mailto links and vice versa.
func Contacts(doc *goquery.Document) ContactSet {
	set := ContactsFromText(doc.Text())

	var mailto []string
	doc.Find(`a[href]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if addr := mailtoAddress(href); addr != "" {
			mailto = append(mailto, addr)
		}
	})
	set.Emails = unionSorted(set.Emails, mailto)
	return set
}

// ContactsFromText runs the pattern passes over raw text.
func ContactsFromText(text string) ContactSet {
	emails := make(map[string]bool)
	for _, m := range emailRe.FindAllString(text, -1) {
		emails[strings.ToLower(strings.TrimSpace(m))] = true
	}
	for _, m := range obfuscatedRe.FindAllStringSubmatch(text, -1) {
		local := strings.TrimSpace(m[1])
		domain := dotRe.ReplaceAllString(m[2], ".")
		domain = strings.Join(strings.Fields(domain), "")
		emails[strings.ToLower(local+"@"+domain)] = true
	}

	phones := make(map[string]bool)
	for _, re := range phoneRes {
		for _, m := range re.FindAllString(text, -1) {
			phones[strings.TrimSpace(m)] = true
		}
	}

	return ContactSet{Emails: sortedKeys(emails), Phones: sortedKeys(phones)}
}

// mailtoAddress pulls the address out of a mailto: href, stripping any
// query string after it.
func mailtoAddress(href string) string {
	href = strings.TrimSpace(href)
	if !strings.HasPrefix(strings.ToLower(href), "mailto:") {
		return ""
	}
	addr := href[len("mailto:"):]
	if i := strings.IndexByte(addr, '?'); i >= 0 {
		addr = addr[:i]
	}
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !emailRe.MatchString(addr) {
		return ""
	}
	return addr
}

// contactKeywords flag anchors likely to lead to staff or contact pages.
var contactKeywords = []string{"contact", "staff", "directory", "about"}

// ContactLinks returns up to limit same-site links whose href or visible
// text suggests a contact page, resolved to absolute URLs and deduplicated
// in document order.
func ContactLinks(doc *goquery.Document, baseURL string, limit int) []string {
	seen := make(map[string]bool)
	var links []string
	baseDomain := normalize.Domain(baseURL)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if len(links) >= limit {
			return
		}
		href, _ := a.Attr("href")
		text := strings.ToLower(a.Text())
		hrefLower := strings.ToLower(href)

		matched := false
		for _, kw := range contactKeywords {
			if strings.Contains(hrefLower, kw) || strings.Contains(text, kw) {
				matched = true
				break
			}
		}
		if !matched || strings.HasPrefix(hrefLower, "mailto:") || strings.HasPrefix(hrefLower, "tel:") {
			return
		}

		resolved := normalize.URL(href, baseURL)
		if !strings.HasPrefix(resolved, "http://") && !strings.HasPrefix(resolved, "https://") {
			return
		}
		if normalize.Domain(resolved) != baseDomain {
			return
		}
		if resolved == normalize.URL(baseURL, "") || seen[resolved] {
			return
		}
		seen[resolved] = true
		links = append(links, resolved)
	})

	return links
}

func unionSorted(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
