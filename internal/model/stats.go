package model

import "time"

// DiscoveryStats accumulates counters for one discovery run. Created per
// run and returned to the caller; nothing here is process-global.
type DiscoveryStats struct {
	RunID         string    `json:"run_id"`
	SeedsFetched  int       `json:"seeds_fetched"`
	FetchFailures int       `json:"fetch_failures"`
	PagesVisited  int       `json:"pages_visited"`
	DomainsFound  int       `json:"domains_found"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// CrawlStats accumulates counters for one contact-crawl batch.
type CrawlStats struct {
	RunID            string    `json:"run_id"`
	SitesProcessed   int       `json:"sites_processed"`
	SitesFailed      int       `json:"sites_failed"`
	PagesFetched     int       `json:"pages_fetched"`
	EmailsFound      int       `json:"emails_found"`
	PhonesFound      int       `json:"phones_found"`
	ContactsInserted int       `json:"contacts_inserted"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// IngestStats summarizes one entity-list ingestion.
type IngestStats struct {
	RowsRead       int              `json:"rows_read"`
	Validation     ValidationReport `json:"validation"`
	Deduplication  DedupResult      `json:"deduplication"`
	DepartmentsUps int              `json:"departments_upserted"`
	WebsitesUps    int              `json:"websites_upserted"`
}
