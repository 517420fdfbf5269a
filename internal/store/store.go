// Package store persists jurisdictions, departments, contacts, and
// websites in SQLite with FTS5 mirrors, and exposes the filtered read
// path behind the export and API layers.
package store

import (
	"context"
	"time"

	"github.com/sells-group/govcontacts/internal/model"
)

// Filter is the shared filter vocabulary for queries and bulk exports.
// Zero values mean "no constraint".
type Filter struct {
	Levels           []model.Level            `json:"government_levels,omitempty"`
	States           []string                 `json:"states,omitempty"`
	Counties         []string                 `json:"counties,omitempty"`
	Cities           []string                 `json:"cities,omitempty"`
	Categories       []string                 `json:"department_categories,omitempty"`
	ContactTypes     []model.ContactType      `json:"contact_types,omitempty"`
	ValidationStatus []model.ValidationStatus `json:"validation_status,omitempty"`
	HasEmail         *bool                    `json:"has_email,omitempty"`
	HasPhone         *bool                    `json:"has_phone,omitempty"`
	Domain           string                   `json:"domain,omitempty"`
	DateFrom         string                   `json:"date_from,omitempty"`
	DateTo           string                   `json:"date_to,omitempty"`
}

// Page bounds a paginated query. PerPage is capped by callers at 1000.
type Page struct {
	Number  int
	PerPage int
	Sort    string
	Desc    bool
}

// ContactRow is the joined read-model row behind /api/contacts and the
// contact master exports.
type ContactRow struct {
	model.Contact
	DepartmentName     string `json:"department_name"`
	DepartmentCategory string `json:"department_category,omitempty"`
	JurisdictionName   string `json:"jurisdiction_name"`
	Level              string `json:"government_level"`
	Website            string `json:"website,omitempty"`
}

// SearchResults groups full-text matches by entity type.
type SearchResults struct {
	Contacts      []ContactRow         `json:"contacts,omitempty"`
	Departments   []model.Department   `json:"departments,omitempty"`
	Jurisdictions []model.Jurisdiction `json:"jurisdictions,omitempty"`
}

// Store is the persistence interface for the directory pipeline.
type Store interface {
	// Lifecycle
	Migrate(ctx context.Context) error
	ValidateSchema(ctx context.Context) error
	Close() error

	// Natural-key upserts
	UpsertJurisdiction(ctx context.Context, j model.Jurisdiction) (int64, error)
	UpsertDepartment(ctx context.Context, d model.Department) (int64, error)
	UpsertWebsite(ctx context.Context, w model.Website) (int64, error)

	// Contact ingestion, idempotent on (department_id, email) and
	// (department_id, phone).
	InsertContacts(ctx context.Context, departmentID int64, emails, phones []string) (int, error)

	// Crawl scheduling
	NextBatch(ctx context.Context, level model.Level, batchSize int) ([]model.Website, error)
	TouchWebsite(ctx context.Context, websiteID int64, at time.Time) error
	JurisdictionForWebsite(ctx context.Context, websiteID int64) (int64, error)

	// Read path
	Contacts(ctx context.Context, f Filter, p Page) ([]ContactRow, int, error)
	ContactByID(ctx context.Context, id int64) (*ContactRow, error)
	Departments(ctx context.Context, f Filter, p Page) ([]model.Department, int, error)
	Jurisdictions(ctx context.Context, f Filter, p Page) ([]model.Jurisdiction, int, error)
	Search(ctx context.Context, query, kind string, limit int) (*SearchResults, error)
	WebsitesAtLevel(ctx context.Context, level model.Level, limit int) ([]model.Website, error)
	Counts(ctx context.Context) (map[string]int64, error)
}
