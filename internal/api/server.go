package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/agent"
	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/ingestion"
	"github.com/fmuoria/assessment-report-agent/internal/metrics"
	"github.com/fmuoria/assessment-report-agent/internal/prompt"
	"github.com/fmuoria/assessment-report-agent/internal/session"
	"github.com/fmuoria/assessment-report-agent/internal/storage"
)

// UserHeader carries the caller identity set by the fronting proxy
const UserHeader = "X-Remote-User"

// AnonymousUser is used when no identity header is present
const AnonymousUser = "anonymous"

// Options configures the server
type Options struct {
	Agent       *agent.ReportAgent
	Reports     *storage.ReportStore
	Prompts     *prompt.Store
	Sessions    session.Store
	Catalog     *catalog.Catalog
	Uploads     *ingestion.FileHandler
	Media       *ingestion.MediaStore
	CookieName  string
	SessionTTL  time.Duration
	MaxUploadMB int64
}

// Server handles HTTP requests
type Server struct {
	router     chi.Router
	agent      *agent.ReportAgent
	reports    *storage.ReportStore
	prompts    *prompt.Store
	sessions   session.Store
	catalog    *catalog.Catalog
	uploads    *ingestion.FileHandler
	media      *ingestion.MediaStore
	cookieName string
	sessionTTL time.Duration
	maxUpload  int64
	logger     *zap.Logger
}

// NewServer creates a new API server
func NewServer(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CookieName == "" {
		opts.CookieName = "bedomning_session"
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 20
	}

	s := &Server{
		router:     chi.NewRouter(),
		agent:      opts.Agent,
		reports:    opts.Reports,
		prompts:    opts.Prompts,
		sessions:   opts.Sessions,
		catalog:    opts.Catalog,
		uploads:    opts.Uploads,
		media:      opts.Media,
		cookieName: opts.CookieName,
		sessionTTL: opts.SessionTTL,
		maxUpload:  opts.MaxUploadMB << 20,
		logger:     logger,
	}
	s.routes()
	return s
}

// Router returns the HTTP router
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.Use(s.loggingMiddleware)

	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/wizard", s.handleWizard)

	s.router.Route("/reports", func(r chi.Router) {
		r.Get("/", s.handleListReports)
		r.Get("/{id}", s.handleGetReport)
		r.Delete("/{id}", s.handleDeleteReport)
		r.Get("/{id}/document", s.handleDocument)
		r.Get("/{id}/ratings.xlsx", s.handleRatingsWorkbook)
		r.Post("/{id}/sections/{section}/stream", s.handleStreamSection)
	})

	s.router.Route("/prompts", func(r chi.Router) {
		r.Get("/", s.handleListPrompts)
		r.Get("/{name}", s.handleGetPrompt)
		r.Put("/{name}", s.handleUpdatePrompt)
	})

	s.router.Get("/motivation-factors", s.handleMotivationFactors)

	if s.media != nil {
		prefix := s.media.URLPrefix()
		s.router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(s.media.Dir()))))
	}
}

// handleRoot provides API information
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "Bedömningsrapport",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"POST /wizard":                                 "Submit a wizard step (multipart)",
			"GET /reports":                                 "List your reports",
			"GET /reports/{id}":                            "Resume a report",
			"DELETE /reports/{id}":                         "Delete a report",
			"GET /reports/{id}/document":                   "Download the Word document",
			"GET /reports/{id}/ratings.xlsx":               "Download the ratings workbook",
			"POST /reports/{id}/sections/{section}/stream": "Regenerate a section (SSE)",
			"GET /prompts":                                 "List prompt templates",
			"PUT /prompts/{name}":                          "Edit a prompt template (prompt owner only)",
			"GET /motivation-factors":                      "Motivation factor catalog",
			"GET /health":                                  "Health check",
		},
	})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) handleMotivationFactors(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.catalog.MotivationFactors())
}

// user returns the caller identity
func user(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get(UserHeader)); u != "" {
		return u
	}
	return AnonymousUser
}

// reportID parses the {id} URL parameter
func reportID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

// respondError sends an error response
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondFailure maps domain errors to status codes
func (s *Server) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "report not found")
	case errors.Is(err, prompt.ErrUnknownPrompt), errors.Is(err, agent.ErrUnknownSection):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, prompt.ErrForbidden):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, agent.ErrUnknownAction):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE responses streaming through the recorder
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("user", user(r)),
		)
	})
}
