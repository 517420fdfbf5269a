// Package normalize canonicalizes URLs, domains, and entity names so the
// rest of the pipeline can compare them byte-for-byte. Every function here
// is pure and idempotent.
package normalize

import (
	"net/url"
	"strings"
)

// tracking query parameters stripped during normalization. Other query
// parameters are preserved as-is.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"utm_id":       true,
	"fbclid":       true,
	"gclid":        true,
	"mc_cid":       true,
	"mc_eid":       true,
}

// URL canonicalizes raw: trims whitespace, resolves relative references
// against base (base may be empty), strips the fragment and tracking
// parameters, and removes a single trailing slash from non-root paths.
// No scheme upgrade is performed; an http host stays http.
func URL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if !u.IsAbs() && base != "" {
		b, err := url.Parse(base)
		if err == nil {
			u = b.ResolveReference(u)
		}
	}

	u.Fragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		for param := range q {
			if trackingParams[strings.ToLower(param)] {
				q.Del(param)
			}
		}
		u.RawQuery = q.Encode()
	}

	u.Host = strings.ToLower(u.Host)
	u.Scheme = strings.ToLower(u.Scheme)

	// Strip one trailing slash, but never reduce scheme://host to an
	// invalid form ("/" root path just becomes empty, which serializes
	// back to scheme://host).
	if strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

// Domain extracts the lowercase registrable host from a URL or bare
// domain, stripping a leading "www.". Returns "" when no host can be
// recovered.
func Domain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	host := raw
	if strings.Contains(raw, "//") || strings.Contains(raw, "/") {
		u, err := url.Parse(raw)
		if err == nil && u.Host != "" {
			host = u.Host
		} else {
			// Bare "example.gov/path" style.
			host = strings.SplitN(raw, "/", 2)[0]
		}
	}
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	return strings.TrimPrefix(host, "www.")
}

// Name collapses internal whitespace runs and trims the result, giving a
// stable form for name-based dedup keys.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
