// Package httpapi HTTP-триггеры прогона и чтение сохранённых объявлений
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"airbnb-scraper/internal/observability"
	"airbnb-scraper/internal/scraper"
	"airbnb-scraper/internal/storage"
)

// Runner то, что умеет оркестратор
type Runner interface {
	Run(ctx context.Context, tasks []scraper.RegionTask) (*scraper.RunSummary, error)
	RunCity(ctx context.Context, city string) (*scraper.CityResult, error)
}

// Info данные для /info и /health
type Info struct {
	Environment string
	Addr        string
	CORSOrigins []string
}

func (i Info) development() bool {
	return i.Environment == "development"
}

type Server struct {
	runner  Runner
	tasks   []scraper.RegionTask
	queries storage.ListingQueries
	info    Info
	logger  *observability.Logger

	router *mux.Router

	// одновременно идёт не больше одного скрапинга
	scraping sync.Mutex
}

// NewServer. Маршруты чтения работают, только если repo реализует storage.ListingQueries.
func NewServer(runner Runner, tasks []scraper.RegionTask, repo storage.Repository, info Info, logger *observability.Logger) *Server {
	s := &Server{
		runner: runner,
		tasks:  tasks,
		info:   info,
		logger: logger,
		router: mux.NewRouter(),
	}
	if q, ok := repo.(storage.ListingQueries); ok {
		s.queries = q
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/scrape-north-america", s.handleScrapeNorthAmerica).Methods(http.MethodGet, http.MethodPost)
	s.router.HandleFunc("/scrape-city-data", s.handleScrapeCity).Methods(http.MethodGet)
	s.router.HandleFunc("/get-listings", s.handleGetListings).Methods(http.MethodGet)
	s.router.HandleFunc("/get-listing/{id}", s.handleGetListing).Methods(http.MethodGet)
	s.router.HandleFunc("/filters", s.handleFilters).Methods(http.MethodGet)
	s.router.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)
}

// Handler роутер в обёртке CORS. CORS снаружи mux, чтобы preflight не упирался в 405.
func (s *Server) Handler() http.Handler {
	return s.cors(s.router)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.allowedOrigin(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
			h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowedOrigin(origin string) bool {
	return slices.Contains(s.info.CORSOrigins, "*") || slices.Contains(s.info.CORSOrigins, origin)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
