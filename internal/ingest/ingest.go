// Package ingest loads agency tables into the store: parse, validate,
// deduplicate, then upsert departments and websites under the federal
// jurisdiction by natural key so re-ingestion updates instead of
// duplicating.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/govcontacts/internal/dedup"
	"github.com/sells-group/govcontacts/internal/model"
	"github.com/sells-group/govcontacts/internal/normalize"
	"github.com/sells-group/govcontacts/internal/store"
	"github.com/sells-group/govcontacts/internal/validate"
)

// FederalJurisdictionName is the umbrella jurisdiction agency rows are
// filed under.
const FederalJurisdictionName = "United States Federal Government"

// LoadCSV reads agency records from a headered CSV. Recognized columns
// are agency_name, homepage_url, section, and parent_department; extra
// columns are ignored and missing optional columns leave fields empty.
func LoadCSV(r io.Reader) ([]model.AgencyRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("ingest: empty file")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["agency_name"]; !ok {
		return nil, eris.New("ingest: missing agency_name column")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []model.AgencyRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "ingest: read row")
		}
		records = append(records, model.AgencyRecord{
			Name:             normalize.Name(field(row, "agency_name")),
			URL:              field(row, "homepage_url"),
			Section:          field(row, "section"),
			ParentDepartment: field(row, "parent_department"),
		})
	}
	return records, nil
}

// Pipeline validates, deduplicates, and persists agency records.
type Pipeline struct {
	store store.Store
}

// New creates a Pipeline over the given store.
func New(st store.Store) *Pipeline {
	return &Pipeline{store: st}
}

// Run pushes records through validation and deduplication, then upserts
// each survivor as a federal-agency department. Records with a usable
// homepage also get a department-scoped website row so the crawler can
// schedule them.
func (p *Pipeline) Run(ctx context.Context, records []model.AgencyRecord) (model.IngestStats, error) {
	stats := model.IngestStats{RowsRead: len(records)}

	stats.Validation = validate.Records(records)
	valid := validate.Valid(records)

	stats.Deduplication = dedup.Records(valid)
	deduped := stats.Deduplication.Unique

	jid, err := p.store.UpsertJurisdiction(ctx, model.Jurisdiction{
		Name:       FederalJurisdictionName,
		Level:      model.LevelFederal,
		WebsiteURL: "https://usa.gov",
	})
	if err != nil {
		return stats, eris.Wrap(err, "ingest: federal jurisdiction")
	}

	for _, rec := range deduped {
		dept := model.Department{
			JurisdictionID: jid,
			Name:           rec.Name,
			Category:       "federal_agency",
			Description:    rec.ParentDepartment,
		}
		if rec.HasURL() {
			dept.WebsiteURL = normalize.URL(rec.URL, "")
		}
		did, err := p.store.UpsertDepartment(ctx, dept)
		if err != nil {
			return stats, eris.Wrapf(err, "ingest: department %q", rec.Name)
		}
		stats.DepartmentsUps++

		if !rec.HasURL() {
			continue
		}
		domain := normalize.Domain(rec.URL)
		if domain == "" {
			continue
		}
		if _, err := p.store.UpsertWebsite(ctx, model.Website{
			JurisdictionID: jid,
			DepartmentID:   &did,
			Domain:         domain,
			FullURL:        dept.WebsiteURL,
			SiteType:       model.SiteDepartment,
		}); err != nil {
			return stats, eris.Wrapf(err, "ingest: website %q", domain)
		}
		stats.WebsitesUps++
	}

	zap.L().Info("ingest: complete",
		zap.Int("rows_read", stats.RowsRead),
		zap.Int("invalid", stats.Validation.InvalidCount),
		zap.Int("duplicates_removed", stats.Deduplication.DuplicatesRemoved),
		zap.Int("departments", stats.DepartmentsUps),
		zap.Int("websites", stats.WebsitesUps),
	)
	return stats, nil
}
