// Package model defines the core types shared across the directory pipeline.
package model

import "strings"

// UnresolvedURL marks a record whose homepage could not be resolved from
// the listing page. Ingestion treats it (and the legacy "Not found" /
// "See USA.gov" sentinels) as an absent URL, never as a literal one.
const UnresolvedURL = "unresolved"

// AgencyRecord is one entity recovered from a listing page: a named
// organization, the cross-host URL that represents it, and the section
// context it appeared under. Produced by the extractor, checked by the
// validator, merged by the deduplicator.
type AgencyRecord struct {
	Name             string `json:"agency_name"`
	URL              string `json:"homepage_url"`
	Section          string `json:"section"`
	ParentDepartment string `json:"parent_department,omitempty"`
}

// HasURL reports whether the record carries a usable absolute URL.
func (r AgencyRecord) HasURL() bool {
	if r.URL == "" || r.URL == UnresolvedURL {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(r.URL)) {
	case "not found", "see usa.gov":
		return false
	}
	return strings.HasPrefix(r.URL, "http://") || strings.HasPrefix(r.URL, "https://")
}

// ValidationReport summarizes shape checks over a batch of records.
// Issues holds at most IssueSampleSize entries; InvalidCount is the
// true total regardless of the cap.
type ValidationReport struct {
	ValidCount   int      `json:"valid_count"`
	InvalidCount int      `json:"invalid_count"`
	Issues       []string `json:"issues"`
	Passed       bool     `json:"passed"`
}

// IssueSampleSize bounds the reported issue sample in a ValidationReport.
const IssueSampleSize = 20

// DedupResult is the outcome of a dedup pass.
type DedupResult struct {
	Unique            []AgencyRecord `json:"unique_records"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	OriginalCount     int            `json:"original_count"`
	UniqueCount       int            `json:"unique_count"`
}
