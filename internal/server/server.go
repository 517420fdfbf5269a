// Package server exposes the contact directory over HTTP: filtered,
// paginated reads, full-text search, and bulk export, all backed by the
// store's shared filter vocabulary.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/govcontacts/internal/export"
	"github.com/sells-group/govcontacts/internal/store"
)

const (
	apiName    = "Government Contacts API"
	apiVersion = "1.0"

	defaultPerPage = 50
	maxPerPage     = 1000
	// exportCap bounds a single bulk export request.
	exportCap = 100000
)

// Server serves the read API over a store.
type Server struct {
	store store.Store
}

// New creates a Server.
func New(st store.Store) *Server {
	return &Server{store: st}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.handleInfo)
		r.Get("/contacts", s.handleContacts)
		r.Get("/contacts/{id}", s.handleContactByID)
		r.Get("/departments", s.handleDepartments)
		r.Get("/jurisdictions", s.handleJurisdictions)
		r.Get("/search", s.handleSearch)
		r.Get("/statistics", s.handleStatistics)
		r.Get("/export/{format}", s.handleExport)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
		)
	})
}

// pagination is the envelope metadata attached to every list response.
type pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

type envelope struct {
	Data       any        `json:"data"`
	Pagination pagination `json:"pagination"`
}

func paginate(data any, page store.Page, total int) envelope {
	pages := (total + page.PerPage - 1) / page.PerPage
	return envelope{
		Data: data,
		Pagination: pagination{
			Page:    page.Number,
			PerPage: page.PerPage,
			Total:   total,
			Pages:   pages,
			HasNext: page.Number < pages,
			HasPrev: page.Number > 1,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    apiName,
		"version": apiVersion,
		"endpoints": map[string]string{
			"contacts":      "/api/contacts",
			"departments":   "/api/departments",
			"jurisdictions": "/api/jurisdictions",
			"search":        "/api/search",
			"statistics":    "/api/statistics",
			"export":        "/api/export/{format}",
		},
	})
}

func (s *Server) handleContacts(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r, contactSortDefault)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, total, err := s.store.Contacts(r.Context(), filter, page)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(rows, page, total))
}

func (s *Server) handleContactByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "contact id must be an integer")
		return
	}
	row, err := s.store.ContactByID(r.Context(), id)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if row == nil {
		writeError(w, http.StatusNotFound, "contact not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": row})
}

func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r, "")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	depts, total, err := s.store.Departments(r.Context(), filter, page)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(depts, page, total))
}

func (s *Server) handleJurisdictions(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r, "")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jurs, total, err := s.store.Jurisdictions(r.Context(), filter, page)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paginate(jurs, page, total))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	kind := strings.ToLower(r.URL.Query().Get("type"))
	if kind == "" {
		kind = "all"
	}
	switch kind {
	case "all", "contacts", "departments", "jurisdictions":
	default:
		writeError(w, http.StatusBadRequest, "type must be one of all, contacts, departments, jurisdictions")
		return
	}
	limit := defaultPerPage
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPerPage {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxPerPage))
			return
		}
		limit = n
	}

	results, err := s.store.Search(r.Context(), query, kind, limit)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "results": results})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, _, err := s.store.Contacts(r.Context(), filter, store.Page{Number: 1, PerPage: exportCap})
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=contacts.%s", format.Extension()))
	if err := export.Contacts(w, format, rows); err != nil {
		zap.L().Error("api export failed", zap.String("format", string(format)), zap.Error(err))
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("api request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
