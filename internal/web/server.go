package web

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nrkitap/adboard/internal/auth"
	"github.com/nrkitap/adboard/internal/photostore"
	"github.com/nrkitap/adboard/internal/service"
)

// Options carries the web-facing knobs from the configuration.
type Options struct {
	MaxListings    int
	MaxUploadBytes int64
}

type Server struct {
	service   *service.SubmissionService
	sessions  *auth.Manager
	photos    photostore.Store
	templates embed.FS
	opts      Options
	mux       *http.ServeMux
	registry  *prometheus.Registry
	metrics   *requestMetrics
	tmplFuncs template.FuncMap
	logger    *slog.Logger
}

func NewServer(svc *service.SubmissionService, sessions *auth.Manager, ps photostore.Store, tmpl embed.FS, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		service:   svc,
		sessions:  sessions,
		photos:    ps,
		templates: tmpl,
		opts:      opts,
		mux:       http.NewServeMux(),
		registry:  prometheus.NewRegistry(),
		logger:    logger,
		tmplFuncs: template.FuncMap{
			"isNumeric": isNumeric,
			"inc":       func(i int) int { return i + 1 },
		},
	}
	s.metrics = newRequestMetrics(s.registry)
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /submit", s.handleSubmit)
	s.mux.HandleFunc("GET /thanks/{id}", s.handleThanks)
	s.mux.HandleFunc("POST /unlock/{id}", s.handleUnlock)
	s.mux.HandleFunc("GET /uploads/{id}/{file}", s.handlePhoto)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.mux.HandleFunc("GET /admin/login", s.handleAdminLoginPage)
	s.mux.HandleFunc("POST /admin/login", s.handleAdminLogin)
	s.mux.HandleFunc("GET /admin/logout", s.handleAdminLogout)
	s.mux.HandleFunc("GET /admin", s.adminRequired(s.handleAdminIndex))
	s.mux.HandleFunc("GET /admin/new", s.adminRequired(s.handleAdminNew))
	s.mux.HandleFunc("POST /admin/create", s.adminRequired(s.handleAdminCreate))
	s.mux.HandleFunc("GET /admin/edit/{id}", s.adminRequired(s.handleAdminEdit))
	s.mux.HandleFunc("POST /admin/save/{id}", s.adminRequired(s.handleAdminSave))
	s.mux.HandleFunc("POST /admin/delete/{id}", s.adminRequired(s.handleAdminDelete))
	s.mux.HandleFunc("POST /admin/upload/{id}", s.adminRequired(s.handleAdminUpload))
	s.mux.HandleFunc("POST /admin/photo/delete/{id}/{file}", s.adminRequired(s.handleAdminPhotoDelete))
	s.mux.HandleFunc("GET /admin/csv", s.adminRequired(s.handleAdminCSV))
}

// adminRequired gates a handler behind an admin session. When no admin
// key is configured the whole admin surface answers 404.
func (s *Server) adminRequired(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.AdminEnabled() {
			http.NotFound(w, r)
			return
		}
		if !s.sessions.FromRequest(r).Admin {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// securityHeaders adds defensive HTTP response headers to every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data:; "+
				"form-action 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler := requestLogger(s.logger, securityHeaders(s.metrics.instrument(s.routePattern, s.mux)))
	handler.ServeHTTP(w, r)
}

// routePattern reports the registered mux pattern matching r, for
// metric labels with bounded cardinality.
func (s *Server) routePattern(r *http.Request) string {
	if _, pattern := s.mux.Handler(r); pattern != "" {
		return pattern
	}
	return "unmatched"
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return srv.ListenAndServe()
}

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, status int, data any, files ...string) {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		s.logger.Error("parse templates failed", "files", files, "error", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		s.logger.Error("render page failed", "files", files, "error", err)
	}
}

// isNumeric reports whether the string looks like a plain number after
// removing common thousands separators; the templates use it to decide
// whether to append a currency suffix to the price.
func isNumeric(value string) bool {
	s := strings.TrimSpace(value)
	if s == "" {
		return false
	}
	for _, ch := range []string{" ", " ", ",", ".", "_"} {
		s = strings.ReplaceAll(s, ch, "")
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
