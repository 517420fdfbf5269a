package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/govcontacts/internal/model"
)

func TestRecords_ExactURLMatch(t *testing.T) {
	in := []model.AgencyRecord{
		{Name: "Agriculture Department", URL: "https://www.usda.gov", Section: "A"},
		{Name: "Dept. of Agriculture", URL: "https://www.usda.gov/", Section: "A", ParentDepartment: "Parent Dept"},
	}

	out := Records(in)

	assert.Equal(t, 2, out.OriginalCount)
	assert.Equal(t, 1, out.UniqueCount)
	assert.Equal(t, 1, out.DuplicatesRemoved)
	assert.Len(t, out.Unique, 1)
	// Merge fills the gap from the duplicate; existing fields win.
	assert.Equal(t, "Agriculture Department", out.Unique[0].Name)
	assert.Equal(t, "Parent Dept", out.Unique[0].ParentDepartment)
}

func TestRecords_NameDomainMatch(t *testing.T) {
	in := []model.AgencyRecord{
		{Name: "Forest Service", URL: "https://www.fs.usda.gov/about", Section: "F"},
		{Name: "forest   service", URL: "https://www.fs.usda.gov/contact", Section: "F"},
	}

	out := Records(in)

	assert.Equal(t, 1, out.UniqueCount)
	assert.Equal(t, "https://www.fs.usda.gov/about", out.Unique[0].URL)
}

func TestRecords_DistinctEntitiesKept(t *testing.T) {
	in := []model.AgencyRecord{
		{Name: "Agriculture Department", URL: "https://www.usda.gov", Section: "A"},
		{Name: "Census Bureau", URL: "https://www.census.gov", Section: "C"},
		{Name: "Agriculture Department", URL: "https://agriculture.ny.gov", Section: "A"},
	}

	out := Records(in)

	// Same name on a different domain is a different entity.
	assert.Equal(t, 3, out.UniqueCount)
}

func TestRecords_OrderPreserved(t *testing.T) {
	in := []model.AgencyRecord{
		{Name: "Zeta Board", URL: "https://zeta.gov", Section: "Z"},
		{Name: "Alpha Office", URL: "https://alpha.gov", Section: "A"},
		{Name: "Zeta Board", URL: "https://zeta.gov", Section: "Z"},
	}

	out := Records(in)

	assert.Equal(t, "Zeta Board", out.Unique[0].Name)
	assert.Equal(t, "Alpha Office", out.Unique[1].Name)
}

func TestRecords_Converges(t *testing.T) {
	in := []model.AgencyRecord{
		{Name: "Agriculture Department", URL: "https://www.usda.gov"},
		{Name: "Agriculture Department", URL: "https://www.usda.gov/", ParentDepartment: "Parent"},
		{Name: "Census Bureau", URL: "https://www.census.gov"},
		{Name: "", URL: ""},
	}

	once := Records(in)
	twice := Records(once.Unique)

	assert.Equal(t, 0, twice.DuplicatesRemoved)
	assert.Equal(t, once.Unique, twice.Unique)
}

func TestRecords_ConvergesAfterNameEnrichment(t *testing.T) {
	// The first record has no name until the second merges one in. The
	// third then matches on name+domain, so all three collapse to one.
	in := []model.AgencyRecord{
		{Name: "", URL: "https://a.gov/x"},
		{Name: "Agency", URL: "https://a.gov/x"},
		{Name: "Agency", URL: "https://a.gov/y"},
	}

	once := Records(in)

	assert.Equal(t, 1, once.UniqueCount)
	assert.Equal(t, 2, once.DuplicatesRemoved)
	assert.Equal(t, "Agency", once.Unique[0].Name)
	assert.Equal(t, "https://a.gov/x", once.Unique[0].URL)

	twice := Records(once.Unique)
	assert.Equal(t, 0, twice.DuplicatesRemoved)
	assert.Equal(t, once.Unique, twice.Unique)
}

func TestRecords_UnresolvedURLsNeverCollide(t *testing.T) {
	in := []model.AgencyRecord{
		{Name: "First Commission", URL: model.UnresolvedURL, Section: "F"},
		{Name: "Second Commission", URL: model.UnresolvedURL, Section: "S"},
	}

	out := Records(in)

	assert.Equal(t, 2, out.UniqueCount)
}
