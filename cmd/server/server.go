package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/uecnrules/catalog"
	"github.com/liamcoop/uecnrules/conditions"
	"github.com/liamcoop/uecnrules/ingest"
	"github.com/liamcoop/uecnrules/internal/config"
	"github.com/liamcoop/uecnrules/internal/logger"
	"github.com/liamcoop/uecnrules/internal/metrics"
	"github.com/liamcoop/uecnrules/prefs"
	"github.com/liamcoop/uecnrules/rules"
	"github.com/liamcoop/uecnrules/session"
)

// errNoRule is returned when a session has not generated a rule yet
var errNoRule = errors.New("no rule generated yet")

type Server struct {
	cfg      *config.Config
	sessions *session.Manager
	prefs    prefs.Store
	db       *sql.DB
	parser   *ingest.Parser
	checker  *conditions.Checker
	router   *chi.Mux
}

// NewServer wires the API. db is the preference database, nil for the
// in-memory driver.
func NewServer(cfg *config.Config, store prefs.Store, db *sql.DB) (*Server, error) {
	checker, err := conditions.NewChecker()
	if err != nil {
		return nil, err
	}

	var converter ingest.Converter
	if cfg.Converter.URL != "" {
		converter = ingest.NewConverterClient(cfg.Converter.URL, cfg.Converter.Timeout)
	} else {
		logger.Warn("converter URL not set, database uploads are disabled")
	}

	s := &Server{
		cfg:      cfg,
		sessions: session.NewManager(cfg.Session.IdleTTL),
		prefs:    store,
		db:       db,
		parser:   ingest.NewParser(converter),
		checker:  checker,
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(s.cfg.Server.SlowRequest))
	r.Use(metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/examples", s.handleListExamples)

		// Preferences are shared across sessions
		r.Route("/preferences", func(r chi.Router) {
			r.Get("/", s.handleListPreferences)
			r.Get("/{key}", s.handleGetPreference)
			r.Put("/{key}", s.handleSetPreference)
			r.Delete("/{key}", s.handleDeletePreference)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleCreateSession)

			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)

				// Form editing
				r.Get("/form", s.handleGetForm)
				r.Patch("/form", s.handlePatchForm)
				r.Post("/form/reset", s.handleResetForm)
				r.Post("/form/template", s.handleLoadTemplate)
				r.Post("/form/examples/{exampleId}", s.handleLoadExample)
				r.Post("/form/items/{kind}", s.handleAddItem)
				r.Patch("/form/items/{kind}/{itemId}", s.handleUpdateItem)
				r.Delete("/form/items/{kind}/{itemId}", s.handleRemoveItem)

				// Data sources
				r.Post("/files", s.handleUploadFiles)
				r.Get("/files", s.handleListFiles)
				r.Route("/files/{fileId}", func(r chi.Router) {
					r.Get("/", s.handleGetFile)
					r.Delete("/", s.handleDeleteFile)
					r.Put("/alias", s.handleRenameFile)
					r.Get("/structure", s.handleFileStructure)
					r.Post("/select-all", s.handleSelectAll)
					r.Post("/select-none", s.handleSelectNone)
					r.Put("/sheets/{sheet}/alias", s.handleRenameSheet)
					r.Put("/sheets/{sheet}/selected", s.handleToggleSheet)
				})
				r.Get("/catalog", s.handleCatalog)

				// Rules
				r.Post("/generate", s.handleGenerate)
				r.Get("/rule", s.handleGetRule)
				r.Get("/rule/download", s.handleDownloadRule)
				r.Post("/conditions/check", s.handleCheckConditions)
				r.Post("/conditions/preview", s.handlePreviewConditions)
			})
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// workspace resolves the session in the URL, responding 404 when it is gone
func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*session.Workspace, bool) {
	ws, err := s.sessions.Get(chi.URLParam(r, "sessionId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found", err)
		return nil, false
	}
	return ws, true
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"sessions":    s.sessions.Len(),
		"prefsDriver": s.cfg.Prefs.Driver,
		"converter":   s.cfg.Converter.URL != "",
	})
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, catalog.ErrFileNotFound),
		errors.Is(err, catalog.ErrSheetNotFound),
		errors.Is(err, rules.ErrItemNotFound),
		errors.Is(err, rules.ErrExampleNotFound),
		errors.Is(err, prefs.ErrNotFound),
		errors.Is(err, errNoRule):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrEmptyAlias),
		errors.Is(err, catalog.ErrDuplicateAlias),
		errors.Is(err, catalog.ErrInvalidAlias),
		errors.Is(err, rules.ErrUnknownField),
		errors.Is(err, rules.ErrInvalidValue),
		errors.Is(err, rules.ErrUnknownKind),
		errors.Is(err, prefs.ErrInvalidKey),
		errors.Is(err, prefs.ErrInvalidValue),
		errors.Is(err, ingest.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrConverterDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondDomainError(w http.ResponseWriter, message string, err error) {
	respondError(w, errorStatus(err), message, err)
}

// pathParam returns a URL parameter decoded. chi matches on the raw path
// when the request carries escaped separators.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}
