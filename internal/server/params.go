package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/govcontacts/internal/model"
	"github.com/sells-group/govcontacts/internal/store"
)

const contactSortDefault = "contact_name"

// parsePage reads page, per_page, sort, and order. Pagination bounds
// mirror the export layer: per_page between 1 and 1000.
func parsePage(r *http.Request, defaultSort string) (store.Page, error) {
	q := r.URL.Query()
	page := store.Page{Number: 1, PerPage: defaultPerPage, Sort: defaultSort}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, eris.New("page must be a positive integer")
		}
		page.Number = n
	}
	if raw := q.Get("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPerPage {
			return page, eris.Errorf("per_page must be between 1 and %d", maxPerPage)
		}
		page.PerPage = n
	}
	if raw := q.Get("sort"); raw != "" {
		page.Sort = raw
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		page.Desc = true
	default:
		return page, eris.New("order must be asc or desc")
	}
	return page, nil
}

// parseFilter reads the shared filter vocabulary from query parameters.
// List parameters are comma-separated.
func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	var f store.Filter

	for _, raw := range splitList(q.Get("government_levels")) {
		level := model.Level(strings.ToLower(raw))
		if !level.Valid() {
			return f, eris.Errorf("unknown government level %q", raw)
		}
		f.Levels = append(f.Levels, level)
	}
	for _, s := range splitList(q.Get("states")) {
		f.States = append(f.States, strings.ToUpper(s))
	}
	f.Counties = splitList(q.Get("counties"))
	f.Cities = splitList(q.Get("cities"))
	f.Categories = splitList(q.Get("department_categories"))
	for _, t := range splitList(q.Get("contact_types")) {
		f.ContactTypes = append(f.ContactTypes, model.ContactType(strings.ToLower(t)))
	}
	for _, v := range splitList(q.Get("validation_status")) {
		f.ValidationStatus = append(f.ValidationStatus, model.ValidationStatus(strings.ToLower(v)))
	}

	if raw := q.Get("has_email"); raw != "" {
		f.HasEmail = boolPtr(raw)
	}
	if raw := q.Get("has_phone"); raw != "" {
		f.HasPhone = boolPtr(raw)
	}
	f.Domain = q.Get("domain")
	f.DateFrom = q.Get("date_from")
	f.DateTo = q.Get("date_to")
	return f, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func boolPtr(raw string) *bool {
	v := false
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		v = true
	}
	return &v
}
