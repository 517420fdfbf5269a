// Package validate checks extracted records against minimal shape rules.
// Validation issues are data, not errors: the report drives counters and
// logging, never control flow.
package validate

import (
	"fmt"
	"strings"

	"github.com/sells-group/govcontacts/internal/model"
	"github.com/sells-group/govcontacts/internal/normalize"
)

// Records applies per-record shape rules and returns an aggregate report.
// The input is never mutated. Rules: name non-empty after whitespace
// normalization, URL present and http(s), section assigned.
func Records(records []model.AgencyRecord) model.ValidationReport {
	var report model.ValidationReport

	for i, rec := range records {
		var issues []string

		if normalize.Name(rec.Name) == "" {
			issues = append(issues, fmt.Sprintf("record %d: empty agency_name", i))
		}
		if !rec.HasURL() {
			issues = append(issues, fmt.Sprintf("record %d: missing or malformed homepage_url %q", i, rec.URL))
		} else if !strings.HasPrefix(rec.URL, "http://") && !strings.HasPrefix(rec.URL, "https://") {
			issues = append(issues, fmt.Sprintf("record %d: homepage_url must start with http:// or https://", i))
		}
		if strings.TrimSpace(rec.Section) == "" {
			issues = append(issues, fmt.Sprintf("record %d: missing section", i))
		}

		if len(issues) == 0 {
			report.ValidCount++
			continue
		}
		report.InvalidCount++
		for _, issue := range issues {
			if len(report.Issues) < model.IssueSampleSize {
				report.Issues = append(report.Issues, issue)
			}
		}
	}

	report.Passed = report.InvalidCount == 0
	return report
}

// Valid returns only the records that pass all shape rules, preserving
// input order. Used by ingestion to select rows worth persisting while
// the report above accounts for the rest.
func Valid(records []model.AgencyRecord) []model.AgencyRecord {
	var out []model.AgencyRecord
	for _, rec := range records {
		if normalize.Name(rec.Name) == "" || !rec.HasURL() || strings.TrimSpace(rec.Section) == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}
