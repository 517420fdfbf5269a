package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/govcontacts/internal/model"
)

const contactSelect = `
	SELECT c.contact_id, c.department_id, c.contact_type, c.name, c.title, c.email, c.phone,
	       c.mobile, c.fax, c.office_location, c.contact_hours, c.validation_status, c.created_at,
	       d.name, d.category, j.name, j.level, d.website_url
	FROM contacts c
	JOIN departments d ON c.department_id = d.department_id
	JOIN jurisdictions j ON d.jurisdiction_id = j.jurisdiction_id`

// contactSortFields whitelists API sort keys to real columns.
var contactSortFields = map[string]string{
	"contact_name":      "c.name",
	"department_name":   "d.name",
	"jurisdiction_name": "j.name",
	"email":             "c.email",
	"phone":             "c.phone",
	"created_at":        "c.created_at",
}

// Contacts returns one page of the joined contact read model plus the
// unpaginated total for the filter.
func (s *SQLiteStore) Contacts(ctx context.Context, f Filter, p Page) ([]ContactRow, int, error) {
	where, args := contactWhere(f)

	var total int
	countQ := `SELECT COUNT(*) FROM contacts c
		JOIN departments d ON c.department_id = d.department_id
		JOIN jurisdictions j ON d.jurisdiction_id = j.jurisdiction_id` + where
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count contacts")
	}

	q := contactSelect + where + orderBy(contactSortFields, p, "c.name") + limitOffset(p)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: query contacts")
	}
	defer rows.Close()

	var out []ContactRow
	for rows.Next() {
		row, err := scanContactRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, eris.Wrap(rows.Err(), "sqlite: contacts rows")
}

// ContactByID returns a single joined contact row, or nil when absent.
func (s *SQLiteStore) ContactByID(ctx context.Context, id int64) (*ContactRow, error) {
	rows, err := s.db.QueryContext(ctx, contactSelect+` WHERE c.contact_id = ?`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: contact %d", id)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	row, err := scanContactRow(rows)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Departments returns one page of departments matching the filter.
func (s *SQLiteStore) Departments(ctx context.Context, f Filter, p Page) ([]model.Department, int, error) {
	var clauses []string
	var args []any
	addIn(&clauses, &args, "j.level", levelsToStrings(f.Levels))
	addIn(&clauses, &args, "j.state_code", f.States)
	addIn(&clauses, &args, "d.category", f.Categories)
	if f.Domain != "" {
		clauses = append(clauses, "d.website_url LIKE ?")
		args = append(args, "%"+f.Domain+"%")
	}
	where := whereClause(clauses)

	base := ` FROM departments d JOIN jurisdictions j ON d.jurisdiction_id = j.jurisdiction_id` + where

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)"+base, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count departments")
	}

	sortFields := map[string]string{"name": "d.name", "category": "d.category", "jurisdiction_name": "j.name"}
	q := `SELECT d.department_id, d.jurisdiction_id, d.name, d.category, d.description, d.website_url,
		d.main_email, d.main_phone, d.address_street, d.address_city, d.address_state, d.address_zip` +
		base + orderBy(sortFields, p, "d.name") + limitOffset(p)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: query departments")
	}
	defer rows.Close()

	var out []model.Department
	for rows.Next() {
		var d model.Department
		if err := rows.Scan(&d.ID, &d.JurisdictionID, &d.Name, &d.Category, &d.Description, &d.WebsiteURL,
			&d.MainEmail, &d.MainPhone, &d.AddressStreet, &d.AddressCity, &d.AddressState, &d.AddressZip); err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan department")
		}
		out = append(out, d)
	}
	return out, total, eris.Wrap(rows.Err(), "sqlite: departments rows")
}

// Jurisdictions returns one page of jurisdictions matching the filter,
// ordered by level then name by default.
func (s *SQLiteStore) Jurisdictions(ctx context.Context, f Filter, p Page) ([]model.Jurisdiction, int, error) {
	var clauses []string
	var args []any
	addIn(&clauses, &args, "level", levelsToStrings(f.Levels))
	addIn(&clauses, &args, "state_code", f.States)
	addIn(&clauses, &args, "county_name", f.Counties)
	addIn(&clauses, &args, "city_name", f.Cities)
	where := whereClause(clauses)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jurisdictions"+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count jurisdictions")
	}

	sortFields := map[string]string{"name": "name", "level": "level_order"}
	order := orderBy(sortFields, p, "level_order")
	if p.Sort == "" {
		order = " ORDER BY level_order ASC, name ASC"
	}
	q := `SELECT jurisdiction_id, name, level, level_order, state_code, county_name, city_name, website_url
		FROM jurisdictions` + where + order + limitOffset(p)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: query jurisdictions")
	}
	defer rows.Close()

	var out []model.Jurisdiction
	for rows.Next() {
		var j model.Jurisdiction
		var level string
		if err := rows.Scan(&j.ID, &j.Name, &level, &j.LevelOrder, &j.StateCode, &j.CountyName, &j.CityName, &j.WebsiteURL); err != nil {
			return nil, 0, eris.Wrap(err, "sqlite: scan jurisdiction")
		}
		j.Level = model.Level(level)
		out = append(out, j)
	}
	return out, total, eris.Wrap(rows.Err(), "sqlite: jurisdictions rows")
}

// Search runs full-text search across the FTS mirrors, falling back to
// LIKE matching when the mirrors are unavailable. The fallback is lower
// precision but never an error.
func (s *SQLiteStore) Search(ctx context.Context, query, kind string, limit int) (*SearchResults, error) {
	if limit <= 0 {
		limit = 50
	}
	useFTS := true
	for _, t := range []string{"contacts_fts", "departments_fts", "jurisdictions_fts"} {
		ok, err := s.hasTable(ctx, t)
		if err != nil {
			return nil, err
		}
		if !ok {
			useFTS = false
			break
		}
	}
	if !useFTS {
		zap.L().Warn("search: FTS mirrors unavailable, falling back to LIKE matching")
	}

	results := &SearchResults{}
	var err error
	if kind == "contacts" || kind == "all" {
		results.Contacts, err = s.searchContacts(ctx, query, limit, useFTS)
		if err != nil {
			return nil, err
		}
	}
	if kind == "departments" || kind == "all" {
		results.Departments, err = s.searchDepartments(ctx, query, limit, useFTS)
		if err != nil {
			return nil, err
		}
	}
	if kind == "jurisdictions" || kind == "all" {
		results.Jurisdictions, err = s.searchJurisdictions(ctx, query, limit, useFTS)
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *SQLiteStore) searchContacts(ctx context.Context, query string, limit int, useFTS bool) ([]ContactRow, error) {
	var rows *sql.Rows
	var err error
	if useFTS {
		rows, err = s.db.QueryContext(ctx, contactSelect+`
			JOIN contacts_fts fts ON fts.rowid = c.contact_id
			WHERE contacts_fts MATCH ? ORDER BY rank LIMIT ?`,
			ftsQuery(query), limit,
		)
	} else {
		like := "%" + query + "%"
		rows, err = s.db.QueryContext(ctx, contactSelect+`
			WHERE c.name LIKE ? OR c.title LIKE ? OR c.email LIKE ? OR c.phone LIKE ? LIMIT ?`,
			like, like, like, like, limit,
		)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search contacts")
	}
	defer rows.Close()

	var out []ContactRow
	for rows.Next() {
		row, err := scanContactRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: search contacts rows")
}

func (s *SQLiteStore) searchDepartments(ctx context.Context, query string, limit int, useFTS bool) ([]model.Department, error) {
	sel := `SELECT d.department_id, d.jurisdiction_id, d.name, d.category, d.description, d.website_url,
		d.main_email, d.main_phone, d.address_street, d.address_city, d.address_state, d.address_zip
		FROM departments d`
	var rows *sql.Rows
	var err error
	if useFTS {
		rows, err = s.db.QueryContext(ctx, sel+`
			JOIN departments_fts fts ON fts.rowid = d.department_id
			WHERE departments_fts MATCH ? ORDER BY rank LIMIT ?`,
			ftsQuery(query), limit,
		)
	} else {
		like := "%" + query + "%"
		rows, err = s.db.QueryContext(ctx, sel+`
			WHERE d.name LIKE ? OR d.description LIKE ? OR d.category LIKE ? LIMIT ?`,
			like, like, like, limit,
		)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search departments")
	}
	defer rows.Close()

	var out []model.Department
	for rows.Next() {
		var d model.Department
		if err := rows.Scan(&d.ID, &d.JurisdictionID, &d.Name, &d.Category, &d.Description, &d.WebsiteURL,
			&d.MainEmail, &d.MainPhone, &d.AddressStreet, &d.AddressCity, &d.AddressState, &d.AddressZip); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan department")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: search departments rows")
}

func (s *SQLiteStore) searchJurisdictions(ctx context.Context, query string, limit int, useFTS bool) ([]model.Jurisdiction, error) {
	sel := `SELECT j.jurisdiction_id, j.name, j.level, j.level_order, j.state_code, j.county_name, j.city_name, j.website_url
		FROM jurisdictions j`
	var rows *sql.Rows
	var err error
	if useFTS {
		rows, err = s.db.QueryContext(ctx, sel+`
			JOIN jurisdictions_fts fts ON fts.rowid = j.jurisdiction_id
			WHERE jurisdictions_fts MATCH ? ORDER BY rank LIMIT ?`,
			ftsQuery(query), limit,
		)
	} else {
		like := "%" + query + "%"
		rows, err = s.db.QueryContext(ctx, sel+`
			WHERE j.name LIKE ? OR j.level LIKE ? OR j.state_code LIKE ?
			   OR j.county_name LIKE ? OR j.city_name LIKE ? LIMIT ?`,
			like, like, like, like, like, limit,
		)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search jurisdictions")
	}
	defer rows.Close()

	var out []model.Jurisdiction
	for rows.Next() {
		var j model.Jurisdiction
		var level string
		if err := rows.Scan(&j.ID, &j.Name, &level, &j.LevelOrder, &j.StateCode, &j.CountyName, &j.CityName, &j.WebsiteURL); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan jurisdiction")
		}
		j.Level = model.Level(level)
		out = append(out, j)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: search jurisdictions rows")
}

// ftsQuery quotes the user query as a single phrase so FTS5 operators in
// user input cannot break the statement.
func ftsQuery(q string) string {
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}

func contactWhere(f Filter) (string, []any) {
	var clauses []string
	var args []any

	addIn(&clauses, &args, "j.level", levelsToStrings(f.Levels))
	addIn(&clauses, &args, "j.state_code", f.States)
	addIn(&clauses, &args, "j.county_name", f.Counties)
	addIn(&clauses, &args, "j.city_name", f.Cities)
	addIn(&clauses, &args, "d.category", f.Categories)
	addIn(&clauses, &args, "c.contact_type", contactTypesToStrings(f.ContactTypes))
	addIn(&clauses, &args, "c.validation_status", statusesToStrings(f.ValidationStatus))

	if f.HasEmail != nil {
		if *f.HasEmail {
			clauses = append(clauses, "c.email != ''")
		} else {
			clauses = append(clauses, "c.email = ''")
		}
	}
	if f.HasPhone != nil {
		if *f.HasPhone {
			clauses = append(clauses, "c.phone != ''")
		} else {
			clauses = append(clauses, "c.phone = ''")
		}
	}
	if f.Domain != "" {
		clauses = append(clauses, "(d.website_url LIKE ? OR c.email LIKE ?)")
		args = append(args, "%"+f.Domain+"%", "%"+f.Domain+"%")
	}
	if f.DateFrom != "" {
		clauses = append(clauses, "date(c.created_at) >= date(?)")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		clauses = append(clauses, "date(c.created_at) <= date(?)")
		args = append(args, f.DateTo)
	}

	return whereClause(clauses), args
}

func whereClause(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func addIn(clauses *[]string, args *[]any, column string, values []string) {
	if len(values) == 0 {
		return
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	*clauses = append(*clauses, fmt.Sprintf("%s IN (%s)", column, placeholders))
	for _, v := range values {
		*args = append(*args, v)
	}
}

func orderBy(allowed map[string]string, p Page, fallback string) string {
	col, ok := allowed[p.Sort]
	if !ok {
		col = fallback
	}
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, dir)
}

func limitOffset(p Page) string {
	if p.PerPage <= 0 {
		return ""
	}
	page := p.Number
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", p.PerPage, (page-1)*p.PerPage)
}

func scanContactRow(rows *sql.Rows) (ContactRow, error) {
	var row ContactRow
	var ctype, status string
	if err := rows.Scan(&row.Contact.ID, &row.DepartmentID, &ctype, &row.Contact.Name, &row.Title,
		&row.Email, &row.Phone, &row.Mobile, &row.Fax, &row.OfficeLocation, &row.ContactHours,
		&status, &row.CreatedAt, &row.DepartmentName, &row.DepartmentCategory,
		&row.JurisdictionName, &row.Level, &row.Website); err != nil {
		return row, eris.Wrap(err, "sqlite: scan contact row")
	}
	row.Type = model.ContactType(ctype)
	row.ValidationStatus = model.ValidationStatus(status)
	return row, nil
}

func levelsToStrings(levels []model.Level) []string {
	out := make([]string, 0, len(levels))
	for _, l := range levels {
		out = append(out, string(l))
	}
	return out
}

func contactTypesToStrings(types []model.ContactType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}

func statusesToStrings(statuses []model.ValidationStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
