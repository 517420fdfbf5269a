package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/govcontacts/internal/model"
	"github.com/sells-group/govcontacts/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	srv := httptest.NewServer(New(st).Router())
	t.Cleanup(srv.Close)
	return srv, st
}

func seedContacts(t *testing.T, st *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	caJID, err := st.UpsertJurisdiction(ctx, model.Jurisdiction{
		Name: "California", Level: model.LevelState, StateCode: "CA",
	})
	require.NoError(t, err)
	countyJID, err := st.UpsertJurisdiction(ctx, model.Jurisdiction{
		Name: "Sacramento County", Level: model.LevelCounty, StateCode: "CA", CountyName: "Sacramento",
	})
	require.NoError(t, err)

	dmvDID, err := st.UpsertDepartment(ctx, model.Department{
		JurisdictionID: caJID, Name: "Department of Motor Vehicles", Category: "government_site",
		WebsiteURL: "https://dmv.ca.gov",
	})
	require.NoError(t, err)
	clerkDID, err := st.UpsertDepartment(ctx, model.Department{
		JurisdictionID: countyJID, Name: "County Clerk", Category: "government_site",
	})
	require.NoError(t, err)

	_, err = st.InsertContacts(ctx, dmvDID, []string{"info@dmv.ca.gov"}, []string{"916-555-0100"})
	require.NoError(t, err)
	_, err = st.InsertContacts(ctx, clerkDID, []string{"clerk@saccounty.gov"}, nil)
	require.NoError(t, err)
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	var body map[string]string
	resp := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestAPIInfo(t *testing.T) {
	srv, _ := newTestServer(t)
	var body struct {
		Name      string            `json:"name"`
		Endpoints map[string]string `json:"endpoints"`
	}
	resp := getJSON(t, srv.URL+"/api/", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, apiName, body.Name)
	assert.Equal(t, "/api/contacts", body.Endpoints["contacts"])
}

func TestContacts_PaginationEnvelope(t *testing.T) {
	srv, st := newTestServer(t)
	seedContacts(t, st)

	var body struct {
		Data       []store.ContactRow `json:"data"`
		Pagination pagination         `json:"pagination"`
	}
	resp := getJSON(t, srv.URL+"/api/contacts?per_page=2&page=1", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body.Data, 2)
	assert.Equal(t, 3, body.Pagination.Total)
	assert.Equal(t, 2, body.Pagination.Pages)
	assert.True(t, body.Pagination.HasNext)
	assert.False(t, body.Pagination.HasPrev)
}

func TestContacts_LevelFilter(t *testing.T) {
	srv, st := newTestServer(t)
	seedContacts(t, st)

	var body struct {
		Data []store.ContactRow `json:"data"`
	}
	getJSON(t, srv.URL+"/api/contacts?government_levels=county", &body)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "clerk@saccounty.gov", body.Data[0].Email)
}

func TestContacts_BadParams(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{
		"/api/contacts?per_page=5000",
		"/api/contacts?page=0",
		"/api/contacts?order=sideways",
		"/api/contacts?government_levels=galactic",
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body), path)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Equal(t, false, body["success"], path)
		assert.NotEmpty(t, body["error"], path)
	}
}

func TestContactByID(t *testing.T) {
	srv, st := newTestServer(t)
	seedContacts(t, st)

	var list struct {
		Data []store.ContactRow `json:"data"`
	}
	getJSON(t, srv.URL+"/api/contacts", &list)
	require.NotEmpty(t, list.Data)
	id := list.Data[0].ID

	var single struct {
		Data store.ContactRow `json:"data"`
	}
	resp := getJSON(t, srv.URL+"/api/contacts/"+strconv.FormatInt(id, 10), &single)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, single.Data.ID)

	resp, err := http.Get(srv.URL + "/api/contacts/999999")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/contacts/abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJurisdictions_SortedByLevelOrder(t *testing.T) {
	srv, st := newTestServer(t)
	seedContacts(t, st)

	var body struct {
		Data []model.Jurisdiction `json:"data"`
	}
	getJSON(t, srv.URL+"/api/jurisdictions", &body)
	require.Len(t, body.Data, 2)
	assert.Equal(t, "California", body.Data[0].Name, "state sorts before county")
}

func TestSearch(t *testing.T) {
	srv, st := newTestServer(t)
	seedContacts(t, st)

	var body struct {
		Results store.SearchResults `json:"results"`
	}
	resp := getJSON(t, srv.URL+"/api/search?q=Motor&type=departments", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Results.Departments, 1)
	assert.Equal(t, "Department of Motor Vehicles", body.Results.Departments[0].Name)

	resp, err := http.Get(srv.URL + "/api/search")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing q is rejected")
}

func TestStatistics(t *testing.T) {
	srv, st := newTestServer(t)
	seedContacts(t, st)

	var body struct {
		Counts map[string]int64 `json:"counts"`
	}
	getJSON(t, srv.URL+"/api/statistics", &body)
	assert.Equal(t, int64(3), body.Counts["contacts"])
	assert.Equal(t, int64(2), body.Counts["jurisdictions"])
}

func TestExport_CSV(t *testing.T) {
	srv, st := newTestServer(t)
	seedContacts(t, st)

	resp, err := http.Get(srv.URL + "/api/export/csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "contacts.csv")

	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 4) // header + 3 contacts
}

func TestExport_UnsupportedFormat(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/export/pdf")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
