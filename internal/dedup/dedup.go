// Package dedup merges extracted records that refer to the same entity.
//
// Two keys are checked in order of precedence: exact normalized URL, then
// normalized name + URL domain. On a match the retained record is
// enriched with any fields the duplicate has that it lacks; the duplicate
// never replaces it. First-occurrence order is preserved.
package dedup

import (
	"strings"

	"github.com/sells-group/govcontacts/internal/model"
	"github.com/sells-group/govcontacts/internal/normalize"
)

// Records collapses duplicates in the input and reports what was removed.
// The result is a fixed point: running Records over its own Unique slice
// removes nothing further.
func Records(records []model.AgencyRecord) model.DedupResult {
	unique := pass(records)
	// A merge can enrich a kept record with a name or URL that makes it
	// collide with a record kept earlier in the same pass. Repeat until a
	// pass removes nothing.
	for {
		next := pass(unique)
		if len(next) == len(unique) {
			unique = next
			break
		}
		unique = next
	}

	return model.DedupResult{
		Unique:            unique,
		DuplicatesRemoved: len(records) - len(unique),
		OriginalCount:     len(records),
		UniqueCount:       len(unique),
	}
}

// pass runs one dedup sweep over the input, keeping first occurrences.
func pass(records []model.AgencyRecord) []model.AgencyRecord {
	byURL := make(map[string]int)
	byNameDomain := make(map[string]int)
	var unique []model.AgencyRecord

	for _, rec := range records {
		urlKey := recordURLKey(rec)
		nameKey := nameDomainKey(rec)

		idx := -1
		if urlKey != "" {
			if i, ok := byURL[urlKey]; ok {
				idx = i
			}
		}
		if idx < 0 && nameKey != "" {
			if i, ok := byNameDomain[nameKey]; ok {
				idx = i
			}
		}

		if idx >= 0 {
			merge(&unique[idx], rec)
			// The merge may have filled a name or URL gap; register the
			// keys the kept record now answers to so later duplicates
			// find it.
			if k := recordURLKey(unique[idx]); k != "" {
				if _, ok := byURL[k]; !ok {
					byURL[k] = idx
				}
			}
			if k := nameDomainKey(unique[idx]); k != "" {
				if _, ok := byNameDomain[k]; !ok {
					byNameDomain[k] = idx
				}
			}
			continue
		}

		unique = append(unique, rec)
		i := len(unique) - 1
		if urlKey != "" {
			byURL[urlKey] = i
		}
		if nameKey != "" {
			byNameDomain[nameKey] = i
		}
	}

	return unique
}

func recordURLKey(rec model.AgencyRecord) string {
	if !rec.HasURL() {
		return ""
	}
	return normalize.URL(rec.URL, "")
}

// nameDomainKey builds the composite key catching the same entity name
// under the same host with differing paths.
func nameDomainKey(rec model.AgencyRecord) string {
	name := strings.ToLower(normalize.Name(rec.Name))
	if name == "" || !rec.HasURL() {
		return ""
	}
	domain := normalize.Domain(rec.URL)
	if domain == "" {
		return ""
	}
	return name + "|" + domain
}

// merge fills gaps in the kept record from the duplicate. Existing values
// always win.
func merge(kept *model.AgencyRecord, dup model.AgencyRecord) {
	if kept.ParentDepartment == "" && dup.ParentDepartment != "" {
		kept.ParentDepartment = dup.ParentDepartment
	}
	if kept.Section == "" && dup.Section != "" {
		kept.Section = dup.Section
	}
	if !kept.HasURL() && dup.HasURL() {
		kept.URL = dup.URL
	}
	if normalize.Name(kept.Name) == "" && normalize.Name(dup.Name) != "" {
		kept.Name = dup.Name
	}
}
