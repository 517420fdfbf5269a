package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/govcontacts/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Writers are serialized by the connection pool (max one open
// write), which keeps the natural-key upserts race-free under the
// crawler's bounded parallelism.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jurisdictions (
	jurisdiction_id INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	level       TEXT NOT NULL,
	level_order INTEGER NOT NULL,
	state_code  TEXT NOT NULL DEFAULT '',
	county_name TEXT NOT NULL DEFAULT '',
	city_name   TEXT NOT NULL DEFAULT '',
	website_url TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_jurisdictions_nk
	ON jurisdictions(name, level, state_code);

CREATE TABLE IF NOT EXISTS departments (
	department_id   INTEGER PRIMARY KEY,
	jurisdiction_id INTEGER NOT NULL REFERENCES jurisdictions(jurisdiction_id),
	name           TEXT NOT NULL,
	category       TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	website_url    TEXT NOT NULL DEFAULT '',
	main_email     TEXT NOT NULL DEFAULT '',
	main_phone     TEXT NOT NULL DEFAULT '',
	address_street TEXT NOT NULL DEFAULT '',
	address_city   TEXT NOT NULL DEFAULT '',
	address_state  TEXT NOT NULL DEFAULT '',
	address_zip    TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_departments_nk
	ON departments(jurisdiction_id, name);

CREATE TABLE IF NOT EXISTS contacts (
	contact_id      INTEGER PRIMARY KEY,
	department_id   INTEGER NOT NULL REFERENCES departments(department_id),
	contact_type    TEXT NOT NULL,
	name            TEXT NOT NULL DEFAULT '',
	title           TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	mobile          TEXT NOT NULL DEFAULT '',
	fax             TEXT NOT NULL DEFAULT '',
	office_location TEXT NOT NULL DEFAULT '',
	contact_hours   TEXT NOT NULL DEFAULT '',
	validation_status TEXT NOT NULL DEFAULT 'pending',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_contacts_department ON contacts(department_id);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);

CREATE TABLE IF NOT EXISTS websites (
	website_id      INTEGER PRIMARY KEY,
	jurisdiction_id INTEGER NOT NULL REFERENCES jurisdictions(jurisdiction_id),
	department_id   INTEGER REFERENCES departments(department_id),
	domain          TEXT NOT NULL,
	full_url        TEXT NOT NULL DEFAULT '',
	site_type       TEXT NOT NULL DEFAULT 'jurisdiction',
	last_scraped    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_websites_jurisdiction_domain
	ON websites(jurisdiction_id, domain) WHERE department_id IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS ux_websites_department_domain
	ON websites(department_id, domain) WHERE department_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_websites_last_scraped ON websites(last_scraped);

CREATE VIRTUAL TABLE IF NOT EXISTS contacts_fts USING fts5(
	contact_name, title, email, phone,
	content='contacts', content_rowid='contact_id'
);

CREATE VIRTUAL TABLE IF NOT EXISTS departments_fts USING fts5(
	name, description, category,
	content='departments', content_rowid='department_id'
);

CREATE VIRTUAL TABLE IF NOT EXISTS jurisdictions_fts USING fts5(
	name, level, state_code, county_name, city_name,
	content='jurisdictions', content_rowid='jurisdiction_id'
);

CREATE TRIGGER IF NOT EXISTS contacts_ai AFTER INSERT ON contacts BEGIN
	INSERT INTO contacts_fts(rowid, contact_name, title, email, phone)
	VALUES (new.contact_id, new.name, new.title, new.email, new.phone);
END;

CREATE TRIGGER IF NOT EXISTS contacts_ad AFTER DELETE ON contacts BEGIN
	INSERT INTO contacts_fts(contacts_fts, rowid, contact_name, title, email, phone)
	VALUES ('delete', old.contact_id, old.name, old.title, old.email, old.phone);
END;

CREATE TRIGGER IF NOT EXISTS contacts_au AFTER UPDATE ON contacts BEGIN
	INSERT INTO contacts_fts(contacts_fts, rowid, contact_name, title, email, phone)
	VALUES ('delete', old.contact_id, old.name, old.title, old.email, old.phone);
	INSERT INTO contacts_fts(rowid, contact_name, title, email, phone)
	VALUES (new.contact_id, new.name, new.title, new.email, new.phone);
END;

CREATE TRIGGER IF NOT EXISTS departments_ai AFTER INSERT ON departments BEGIN
	INSERT INTO departments_fts(rowid, name, description, category)
	VALUES (new.department_id, new.name, new.description, new.category);
END;

CREATE TRIGGER IF NOT EXISTS departments_ad AFTER DELETE ON departments BEGIN
	INSERT INTO departments_fts(departments_fts, rowid, name, description, category)
	VALUES ('delete', old.department_id, old.name, old.description, old.category);
END;

CREATE TRIGGER IF NOT EXISTS departments_au AFTER UPDATE ON departments BEGIN
	INSERT INTO departments_fts(departments_fts, rowid, name, description, category)
	VALUES ('delete', old.department_id, old.name, old.description, old.category);
	INSERT INTO departments_fts(rowid, name, description, category)
	VALUES (new.department_id, new.name, new.description, new.category);
END;

CREATE TRIGGER IF NOT EXISTS jurisdictions_ai AFTER INSERT ON jurisdictions BEGIN
	INSERT INTO jurisdictions_fts(rowid, name, level, state_code, county_name, city_name)
	VALUES (new.jurisdiction_id, new.name, new.level, new.state_code, new.county_name, new.city_name);
END;

CREATE TRIGGER IF NOT EXISTS jurisdictions_ad AFTER DELETE ON jurisdictions BEGIN
	INSERT INTO jurisdictions_fts(jurisdictions_fts, rowid, name, level, state_code, county_name, city_name)
	VALUES ('delete', old.jurisdiction_id, old.name, old.level, old.state_code, old.county_name, old.city_name);
END;

CREATE TRIGGER IF NOT EXISTS jurisdictions_au AFTER UPDATE ON jurisdictions BEGIN
	INSERT INTO jurisdictions_fts(jurisdictions_fts, rowid, name, level, state_code, county_name, city_name)
	VALUES ('delete', old.jurisdiction_id, old.name, old.level, old.state_code, old.county_name, old.city_name);
	INSERT INTO jurisdictions_fts(rowid, name, level, state_code, county_name, city_name)
	VALUES (new.jurisdiction_id, new.name, new.level, new.state_code, new.county_name, new.city_name);
END;
`

// Migrate creates the schema, FTS mirrors, and sync triggers.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

var requiredTables = []string{"jurisdictions", "departments", "contacts", "websites"}

// ValidateSchema fails fast with an actionable message when the core
// tables are missing. No query can proceed without them.
func (s *SQLiteStore) ValidateSchema(ctx context.Context) error {
	for _, table := range requiredTables {
		ok, err := s.hasTable(ctx, table)
		if err != nil {
			return err
		}
		if !ok {
			return eris.Errorf("sqlite: required table %q is missing; run `govcontacts initdb` first", table)
		}
	}
	return nil
}

func (s *SQLiteStore) hasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table','view') AND name = ?`, name,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: check table %s", name)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertJurisdiction inserts or updates by (name, level, state_code) and
// returns the row id either way.
func (s *SQLiteStore) UpsertJurisdiction(ctx context.Context, j model.Jurisdiction) (int64, error) {
	if !j.Level.Valid() {
		return 0, eris.Errorf("sqlite: invalid jurisdiction level %q", j.Level)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jurisdictions (name, level, level_order, state_code, county_name, city_name, website_url)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, level, state_code) DO UPDATE SET
			county_name = CASE WHEN excluded.county_name != '' THEN excluded.county_name ELSE county_name END,
			city_name   = CASE WHEN excluded.city_name   != '' THEN excluded.city_name   ELSE city_name END,
			website_url = CASE WHEN excluded.website_url != '' THEN excluded.website_url ELSE website_url END`,
		j.Name, string(j.Level), j.Level.Order(), j.StateCode, j.CountyName, j.CityName, j.WebsiteURL,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert jurisdiction %s", j.Name)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT jurisdiction_id FROM jurisdictions WHERE name = ? AND level = ? AND state_code = ?`,
		j.Name, string(j.Level), j.StateCode,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: reselect jurisdiction %s", j.Name)
	}
	return id, nil
}

// UpsertDepartment inserts or updates by (jurisdiction_id, name).
// Non-empty incoming fields overwrite; empty ones leave existing values
// alone, so repeated ingestion enriches rather than erases.
func (s *SQLiteStore) UpsertDepartment(ctx context.Context, d model.Department) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO departments (jurisdiction_id, name, category, description, website_url,
			main_email, main_phone, address_street, address_city, address_state, address_zip)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(jurisdiction_id, name) DO UPDATE SET
			category    = CASE WHEN excluded.category    != '' THEN excluded.category    ELSE category END,
			description = CASE WHEN excluded.description != '' THEN excluded.description ELSE description END,
			website_url = CASE WHEN excluded.website_url != '' THEN excluded.website_url ELSE website_url END,
			main_email  = CASE WHEN excluded.main_email  != '' THEN excluded.main_email  ELSE main_email END,
			main_phone  = CASE WHEN excluded.main_phone  != '' THEN excluded.main_phone  ELSE main_phone END,
			address_street = CASE WHEN excluded.address_street != '' THEN excluded.address_street ELSE address_street END,
			address_city   = CASE WHEN excluded.address_city   != '' THEN excluded.address_city   ELSE address_city END,
			address_state  = CASE WHEN excluded.address_state  != '' THEN excluded.address_state  ELSE address_state END,
			address_zip    = CASE WHEN excluded.address_zip    != '' THEN excluded.address_zip    ELSE address_zip END`,
		d.JurisdictionID, d.Name, d.Category, d.Description, d.WebsiteURL,
		d.MainEmail, d.MainPhone, d.AddressStreet, d.AddressCity, d.AddressState, d.AddressZip,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: upsert department %s", d.Name)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT department_id FROM departments WHERE jurisdiction_id = ? AND name = ?`,
		d.JurisdictionID, d.Name,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: reselect department %s", d.Name)
	}
	return id, nil
}

// UpsertWebsite inserts or updates by (jurisdiction_id, domain) for
// jurisdiction-scoped sites, or (department_id, domain) for
// department-scoped ones. last_scraped is never reset here; only the
// crawl scheduler advances it.
func (s *SQLiteStore) UpsertWebsite(ctx context.Context, w model.Website) (int64, error) {
	var existing int64
	var err error
	if w.DepartmentID != nil {
		err = s.db.QueryRowContext(ctx,
			`SELECT website_id FROM websites WHERE department_id = ? AND domain = ?`,
			*w.DepartmentID, w.Domain,
		).Scan(&existing)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT website_id FROM websites WHERE jurisdiction_id = ? AND domain = ? AND department_id IS NULL`,
			w.JurisdictionID, w.Domain,
		).Scan(&existing)
	}

	switch {
	case err == nil:
		_, err = s.db.ExecContext(ctx, `
			UPDATE websites SET
				full_url  = CASE WHEN ? != '' THEN ? ELSE full_url END,
				site_type = CASE WHEN ? != '' THEN ? ELSE site_type END
			WHERE website_id = ?`,
			w.FullURL, w.FullURL, string(w.SiteType), string(w.SiteType), existing,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: update website %s", w.Domain)
		}
		return existing, nil
	case err == sql.ErrNoRows:
		var deptID any
		if w.DepartmentID != nil {
			deptID = *w.DepartmentID
		}
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO websites (jurisdiction_id, department_id, domain, full_url, site_type)
			VALUES (?, ?, ?, ?, ?)`,
			w.JurisdictionID, deptID, w.Domain, w.FullURL, string(w.SiteType),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert website %s", w.Domain)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: website insert id")
		}
		return id, nil
	default:
		return 0, eris.Wrapf(err, "sqlite: select website %s", w.Domain)
	}
}

// InsertContacts persists pattern-extracted emails and phones for one
// department as general contacts, atomically per call. Values already
// present for the department are skipped.
func (s *SQLiteStore) InsertContacts(ctx context.Context, departmentID int64, emails, phones []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin contacts tx")
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, email := range emails {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO contacts (department_id, contact_type, email, validation_status)
			SELECT ?, ?, ?, 'pending'
			WHERE NOT EXISTS (
				SELECT 1 FROM contacts WHERE department_id = ? AND email = ? AND email != ''
			)`,
			departmentID, string(model.ContactGeneral), email, departmentID, email,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert contact email for department %d", departmentID)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	for _, phone := range phones {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO contacts (department_id, contact_type, phone, validation_status)
			SELECT ?, ?, ?, 'pending'
			WHERE NOT EXISTS (
				SELECT 1 FROM contacts WHERE department_id = ? AND phone = ? AND phone != ''
			)`,
			departmentID, string(model.ContactGeneral), phone, departmentID, phone,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert contact phone for department %d", departmentID)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit contacts tx")
	}
	return inserted, nil
}

// NextBatch returns the least-recently-crawled websites at a level,
// never-crawled (NULL last_scraped) first. Successive calls walk the
// whole level round-robin without any external scheduler state.
func (s *SQLiteStore) NextBatch(ctx context.Context, level model.Level, batchSize int) ([]model.Website, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.website_id, w.jurisdiction_id, w.department_id, w.domain, w.full_url, w.site_type, w.last_scraped
		FROM websites w
		JOIN jurisdictions j ON w.jurisdiction_id = j.jurisdiction_id
		WHERE j.level = ?
		ORDER BY CASE WHEN w.last_scraped IS NULL THEN 0 ELSE 1 END, w.last_scraped ASC, w.website_id ASC
		LIMIT ?`,
		string(level), batchSize,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: next batch")
	}
	defer rows.Close()

	var batch []model.Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, err
		}
		batch = append(batch, w)
	}
	return batch, eris.Wrap(rows.Err(), "sqlite: next batch rows")
}

// TouchWebsite advances last_scraped after a crawl attempt, successful or
// not, so unreachable sites do not hot-loop at the front of the schedule.
func (s *SQLiteStore) TouchWebsite(ctx context.Context, websiteID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE websites SET last_scraped = ? WHERE website_id = ?`,
		at.UTC(), websiteID,
	)
	return eris.Wrapf(err, "sqlite: touch website %d", websiteID)
}

// JurisdictionForWebsite resolves the owning jurisdiction of a website.
func (s *SQLiteStore) JurisdictionForWebsite(ctx context.Context, websiteID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT jurisdiction_id FROM websites WHERE website_id = ?`, websiteID,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: jurisdiction for website %d", websiteID)
	}
	return id, nil
}

// WebsitesAtLevel lists stored websites for a level, used as discovery
// seeds.
func (s *SQLiteStore) WebsitesAtLevel(ctx context.Context, level model.Level, limit int) ([]model.Website, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.website_id, w.jurisdiction_id, w.department_id, w.domain, w.full_url, w.site_type, w.last_scraped
		FROM websites w
		JOIN jurisdictions j ON w.jurisdiction_id = j.jurisdiction_id
		WHERE j.level = ?
		ORDER BY w.website_id
		LIMIT ?`,
		string(level), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: websites at level")
	}
	defer rows.Close()

	var sites []model.Website
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, w)
	}
	return sites, eris.Wrap(rows.Err(), "sqlite: websites rows")
}

// Counts returns per-table row counts plus crawl coverage.
func (s *SQLiteStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64)
	queries := map[string]string{
		"jurisdictions":    `SELECT COUNT(*) FROM jurisdictions`,
		"departments":      `SELECT COUNT(*) FROM departments`,
		"contacts":         `SELECT COUNT(*) FROM contacts`,
		"websites":         `SELECT COUNT(*) FROM websites`,
		"websites_crawled": `SELECT COUNT(*) FROM websites WHERE last_scraped IS NOT NULL`,
	}
	for key, q := range queries {
		var n int64
		if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", key)
		}
		counts[key] = n
	}
	return counts, nil
}

func scanWebsite(rows *sql.Rows) (model.Website, error) {
	var w model.Website
	var deptID sql.NullInt64
	var lastScraped sql.NullTime
	var siteType string
	if err := rows.Scan(&w.ID, &w.JurisdictionID, &deptID, &w.Domain, &w.FullURL, &siteType, &lastScraped); err != nil {
		return w, eris.Wrap(err, "sqlite: scan website")
	}
	if deptID.Valid {
		w.DepartmentID = &deptID.Int64
	}
	if lastScraped.Valid {
		t := lastScraped.Time
		w.LastScraped = &t
	}
	w.SiteType = model.SiteType(siteType)
	return w, nil
}
