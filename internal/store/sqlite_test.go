package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/govcontacts/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedJurisdiction(t *testing.T, st *SQLiteStore, name string, level model.Level) int64 {
	t.Helper()
	id, err := st.UpsertJurisdiction(context.Background(), model.Jurisdiction{Name: name, Level: level})
	require.NoError(t, err)
	return id
}

func TestValidateSchema(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.ValidateSchema(context.Background()))
}

func TestValidateSchema_MissingTables(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close()

	err = st.ValidateSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "govcontacts initdb")
}

func TestUpsertJurisdiction_Idempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first, err := st.UpsertJurisdiction(ctx, model.Jurisdiction{Name: "California", Level: model.LevelState, StateCode: "CA"})
	require.NoError(t, err)
	second, err := st.UpsertJurisdiction(ctx, model.Jurisdiction{Name: "California", Level: model.LevelState, StateCode: "CA"})
	require.NoError(t, err)

	assert.Equal(t, first, second)

	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["jurisdictions"])
}

func TestUpsertJurisdiction_SameNameDifferentLevel(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a, err := st.UpsertJurisdiction(ctx, model.Jurisdiction{Name: "Washington", Level: model.LevelState, StateCode: "WA"})
	require.NoError(t, err)
	b, err := st.UpsertJurisdiction(ctx, model.Jurisdiction{Name: "Washington", Level: model.LevelCounty, StateCode: "WA"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestUpsertJurisdiction_InvalidLevel(t *testing.T) {
	st := newTestStore(t)
	_, err := st.UpsertJurisdiction(context.Background(), model.Jurisdiction{Name: "X", Level: "galactic"})
	require.Error(t, err)
}

func TestUpsertDepartment_NaturalKey(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jid := seedJurisdiction(t, st, "Federal Government", model.LevelFederal)

	first, err := st.UpsertDepartment(ctx, model.Department{
		JurisdictionID: jid, Name: "Agriculture Department", Category: "federal_agency",
	})
	require.NoError(t, err)

	// Re-ingestion updates, never duplicates.
	second, err := st.UpsertDepartment(ctx, model.Department{
		JurisdictionID: jid, Name: "Agriculture Department", Category: "federal_agency",
		WebsiteURL: "https://www.usda.gov",
	})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["departments"])

	depts, _, err := st.Departments(ctx, Filter{}, Page{PerPage: 10, Number: 1})
	require.NoError(t, err)
	require.Len(t, depts, 1)
	assert.Equal(t, "https://www.usda.gov", depts[0].WebsiteURL)
}

func TestUpsertDepartment_EmptyFieldsDoNotErase(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jid := seedJurisdiction(t, st, "Federal Government", model.LevelFederal)

	_, err := st.UpsertDepartment(ctx, model.Department{
		JurisdictionID: jid, Name: "Census Bureau", Category: "federal_agency",
		WebsiteURL: "https://www.census.gov", MainEmail: "info@census.gov",
	})
	require.NoError(t, err)

	_, err = st.UpsertDepartment(ctx, model.Department{
		JurisdictionID: jid, Name: "Census Bureau", Category: "federal_agency",
	})
	require.NoError(t, err)

	depts, _, err := st.Departments(ctx, Filter{}, Page{PerPage: 10, Number: 1})
	require.NoError(t, err)
	assert.Equal(t, "https://www.census.gov", depts[0].WebsiteURL)
	assert.Equal(t, "info@census.gov", depts[0].MainEmail)
}

func TestUpsertWebsite_UniquePerJurisdictionDomain(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jid := seedJurisdiction(t, st, "California", model.LevelState)

	first, err := st.UpsertWebsite(ctx, model.Website{
		JurisdictionID: jid, Domain: "dmv.ca.gov", FullURL: "https://dmv.ca.gov", SiteType: model.SiteJurisdiction,
	})
	require.NoError(t, err)
	second, err := st.UpsertWebsite(ctx, model.Website{
		JurisdictionID: jid, Domain: "dmv.ca.gov", FullURL: "https://dmv.ca.gov/home", SiteType: model.SiteJurisdiction,
	})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	counts, err := st.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["websites"])
}

func TestInsertContacts_IdempotentPerDepartment(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jid := seedJurisdiction(t, st, "California", model.LevelState)
	did, err := st.UpsertDepartment(ctx, model.Department{JurisdictionID: jid, Name: "dmv.ca.gov", Category: "government_site"})
	require.NoError(t, err)

	n, err := st.InsertContacts(ctx, did, []string{"info@dmv.ca.gov"}, []string{"800-777-0133"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Same values again insert nothing.
	n, err = st.InsertContacts(ctx, did, []string{"info@dmv.ca.gov"}, []string{"800-777-0133"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// A different department may hold the same values.
	did2, err := st.UpsertDepartment(ctx, model.Department{JurisdictionID: jid, Name: "other.ca.gov", Category: "government_site"})
	require.NoError(t, err)
	n, err = st.InsertContacts(ctx, did2, []string{"info@dmv.ca.gov"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNextBatch_NullLastScrapedFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jid := seedJurisdiction(t, st, "California", model.LevelState)

	old, err := st.UpsertWebsite(ctx, model.Website{JurisdictionID: jid, Domain: "old.ca.gov", SiteType: model.SiteJurisdiction})
	require.NoError(t, err)
	fresh, err := st.UpsertWebsite(ctx, model.Website{JurisdictionID: jid, Domain: "never.ca.gov", SiteType: model.SiteJurisdiction})
	require.NoError(t, err)
	recent, err := st.UpsertWebsite(ctx, model.Website{JurisdictionID: jid, Domain: "recent.ca.gov", SiteType: model.SiteJurisdiction})
	require.NoError(t, err)

	require.NoError(t, st.TouchWebsite(ctx, old, time.Now().Add(-48*time.Hour)))
	require.NoError(t, st.TouchWebsite(ctx, recent, time.Now()))

	batch, err := st.NextBatch(ctx, model.LevelState, 10)
	require.NoError(t, err)
	require.Len(t, batch, 3)
	assert.Equal(t, fresh, batch[0].ID, "never-crawled site must come first")
	assert.Equal(t, old, batch[1].ID)
	assert.Equal(t, recent, batch[2].ID)
}

func TestNextBatch_FiltersByLevel(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	stateJID := seedJurisdiction(t, st, "California", model.LevelState)
	fedJID := seedJurisdiction(t, st, "Federal Government", model.LevelFederal)

	_, err := st.UpsertWebsite(ctx, model.Website{JurisdictionID: stateJID, Domain: "ca.gov", SiteType: model.SiteJurisdiction})
	require.NoError(t, err)
	_, err = st.UpsertWebsite(ctx, model.Website{JurisdictionID: fedJID, Domain: "usda.gov", SiteType: model.SiteJurisdiction})
	require.NoError(t, err)

	batch, err := st.NextBatch(ctx, model.LevelFederal, 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "usda.gov", batch[0].Domain)
}

func TestFTS_MirrorFollowsSourceRows(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jid := seedJurisdiction(t, st, "Federal Government", model.LevelFederal)
	did, err := st.UpsertDepartment(ctx, model.Department{JurisdictionID: jid, Name: "Forest Service", Category: "federal_agency"})
	require.NoError(t, err)
	_, err = st.InsertContacts(ctx, did, []string{"ranger@fs.usda.gov"}, nil)
	require.NoError(t, err)

	res, err := st.Search(ctx, "ranger", "contacts", 10)
	require.NoError(t, err)
	require.Len(t, res.Contacts, 1)

	// Deleting the source row must remove the mirror entry.
	_, err = st.db.ExecContext(ctx, "DELETE FROM contacts WHERE department_id = ?", did)
	require.NoError(t, err)

	res, err = st.Search(ctx, "ranger", "contacts", 10)
	require.NoError(t, err)
	assert.Empty(t, res.Contacts)
}

func TestSearch_FallbackToLike(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jid := seedJurisdiction(t, st, "Federal Government", model.LevelFederal)
	_, err := st.UpsertDepartment(ctx, model.Department{JurisdictionID: jid, Name: "Forest Service", Category: "federal_agency"})
	require.NoError(t, err)

	// Simulate a database built before the FTS mirrors existed.
	for _, stmt := range []string{
		"DROP TRIGGER contacts_ai", "DROP TRIGGER contacts_au", "DROP TRIGGER contacts_ad",
		"DROP TRIGGER departments_ai", "DROP TRIGGER departments_au", "DROP TRIGGER departments_ad",
		"DROP TRIGGER jurisdictions_ai", "DROP TRIGGER jurisdictions_au", "DROP TRIGGER jurisdictions_ad",
		"DROP TABLE contacts_fts", "DROP TABLE departments_fts", "DROP TABLE jurisdictions_fts",
	} {
		_, err := st.db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	res, err := st.Search(ctx, "Forest", "all", 10)
	require.NoError(t, err)
	require.Len(t, res.Departments, 1)
	assert.Equal(t, "Forest Service", res.Departments[0].Name)
}

func TestContacts_Filters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jid := seedJurisdiction(t, st, "California", model.LevelState)
	did, err := st.UpsertDepartment(ctx, model.Department{
		JurisdictionID: jid, Name: "dmv.ca.gov", Category: "government_site", WebsiteURL: "https://dmv.ca.gov",
	})
	require.NoError(t, err)
	_, err = st.InsertContacts(ctx, did, []string{"info@dmv.ca.gov"}, []string{"800-777-0133"})
	require.NoError(t, err)

	hasEmail := true
	rows, total, err := st.Contacts(ctx, Filter{HasEmail: &hasEmail}, Page{Number: 1, PerPage: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rows, 1)
	assert.Equal(t, "info@dmv.ca.gov", rows[0].Email)
	assert.Equal(t, "dmv.ca.gov", rows[0].DepartmentName)
	assert.Equal(t, "California", rows[0].JurisdictionName)

	rows, total, err = st.Contacts(ctx, Filter{Levels: []model.Level{model.LevelFederal}}, Page{Number: 1, PerPage: 50})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, rows)

	rows, total, err = st.Contacts(ctx, Filter{Domain: "dmv.ca.gov"}, Page{Number: 1, PerPage: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rows, 2)
}

func TestContacts_Pagination(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jid := seedJurisdiction(t, st, "California", model.LevelState)
	did, err := st.UpsertDepartment(ctx, model.Department{JurisdictionID: jid, Name: "d", Category: "government_site"})
	require.NoError(t, err)

	emails := make([]string, 25)
	for i := range emails {
		emails[i] = string(rune('a'+i)) + "@ca.gov"
	}
	_, err = st.InsertContacts(ctx, did, emails, nil)
	require.NoError(t, err)

	rows, total, err := st.Contacts(ctx, Filter{}, Page{Number: 2, PerPage: 10, Sort: "email"})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, rows, 10)
	assert.Equal(t, "k@ca.gov", rows[0].Email)
}

func TestContactByID(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jid := seedJurisdiction(t, st, "California", model.LevelState)
	did, err := st.UpsertDepartment(ctx, model.Department{JurisdictionID: jid, Name: "d", Category: "government_site"})
	require.NoError(t, err)
	_, err = st.InsertContacts(ctx, did, []string{"one@ca.gov"}, nil)
	require.NoError(t, err)

	rows, _, err := st.Contacts(ctx, Filter{}, Page{Number: 1, PerPage: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got, err := st.ContactByID(ctx, rows[0].Contact.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "one@ca.gov", got.Email)

	missing, err := st.ContactByID(ctx, 99999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestJurisdictions_LevelOrderSort(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedJurisdiction(t, st, "Springfield", model.LevelCity)
	seedJurisdiction(t, st, "Federal Government", model.LevelFederal)
	seedJurisdiction(t, st, "Illinois", model.LevelState)

	rows, total, err := st.Jurisdictions(ctx, Filter{}, Page{Number: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 3)
	assert.Equal(t, model.LevelFederal, rows[0].Level)
	assert.Equal(t, model.LevelState, rows[1].Level)
	assert.Equal(t, model.LevelCity, rows[2].Level)
}

func TestWebsitesAtLevel(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	jid := seedJurisdiction(t, st, "California", model.LevelState)
	_, err := st.UpsertWebsite(ctx, model.Website{JurisdictionID: jid, Domain: "ca.gov", FullURL: "https://ca.gov", SiteType: model.SiteJurisdiction})
	require.NoError(t, err)

	sites, err := st.WebsitesAtLevel(ctx, model.LevelState, 10)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, "ca.gov", sites[0].Domain)
	assert.Nil(t, sites[0].LastScraped)
}
