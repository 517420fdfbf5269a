package main

import (
	"context"

	"github.com/sells-group/govcontacts/internal/fetcher"
	"github.com/sells-group/govcontacts/internal/store"
)

// openStore opens the configured SQLite database and verifies the schema
// is present. Commands that create the schema use openStoreRaw instead.
func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	if err := cfg.Validate("db"); err != nil {
		return nil, err
	}
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.ValidateSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// openStoreRaw opens the database without a schema check.
func openStoreRaw() (*store.SQLiteStore, error) {
	if err := cfg.Validate("db"); err != nil {
		return nil, err
	}
	return store.NewSQLite(cfg.Store.Path)
}

// newFetcher builds the shared polite HTTP fetcher from config.
func newFetcher() *fetcher.Fetcher {
	return fetcher.New(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.Fetch.Timeout,
		MaxRetries:   cfg.Fetch.MaxRetries,
		Delay:        cfg.Fetch.Delay,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})
}
