package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"airbnb-scraper/internal/storage"
)

var errBadNumber = errors.New("invalid numeric parameter")

const (
	defaultFiltersLimit = 10
	msgBadNumber        = "Invalid numeric parameter"
)

func (s *Server) handleScrapeNorthAmerica(w http.ResponseWriter, r *http.Request) {
	if !s.scraping.TryLock() {
		s.writeError(w, http.StatusConflict, "Scrape already in progress")
		return
	}
	defer s.scraping.Unlock()

	summary, err := s.runner.Run(r.Context(), s.tasks)
	if err != nil {
		s.logger.Error("Scrape run failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "Failed to scrape listings")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":         "Scraping completed",
		"total_listings":  summary.TotalListings,
		"canada_listings": summary.PerCountry["Canada"],
		"us_listings":     summary.PerCountry["USA"],
		"per_country":     summary.PerCountry,
		"summary":         summary,
	})
}

func (s *Server) handleScrapeCity(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		s.writeError(w, http.StatusBadRequest, "City parameter is required")
		return
	}

	if !s.scraping.TryLock() {
		s.writeError(w, http.StatusConflict, "Scrape already in progress")
		return
	}
	defer s.scraping.Unlock()

	result, err := s.runner.RunCity(r.Context(), city)
	if err != nil {
		s.logger.Error("City scrape failed", "city", city, "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "Failed to scrape city data")
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetListings(w http.ResponseWriter, r *http.Request) {
	if !s.readable(w) {
		return
	}

	q := r.URL.Query()
	limit, err := intParam(q, "limit", 0)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, msgBadNumber)
		return
	}

	listings, err := s.queries.FindListings(r.Context(), storage.ListingFilter{
		City:  q.Get("city"),
		Limit: int64(limit),
	})
	if err != nil {
		s.logger.Error("Failed to fetch listings", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch listings")
		return
	}
	s.writeJSON(w, http.StatusOK, listings)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	if !s.readable(w) {
		return
	}

	id := mux.Vars(r)["id"]
	listing, err := s.queries.GetListing(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrInvalidID):
		s.writeError(w, http.StatusNotFound, "Listing not found")
		return
	case err != nil:
		s.logger.Error("Failed to fetch listing", "id", id, "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch the listing")
		return
	}
	s.writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	if !s.readable(w) {
		return
	}

	q := r.URL.Query()
	limit, err := intParam(q, "limit", defaultFiltersLimit)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, msgBadNumber)
		return
	}

	opts, err := s.queries.Filters(r.Context(), storage.FilterQuery{
		Search:   q.Get("search"),
		Features: splitList(q.Get("features")),
		Limit:    int64(limit),
	})
	if err != nil {
		s.logger.Error("Failed to fetch filters", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch filters")
		return
	}
	s.writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.readable(w) {
		return
	}

	query, err := parseSearchQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, msgBadNumber)
		return
	}

	page, err := s.queries.Search(r.Context(), query)
	if err != nil {
		s.logger.Error("Search failed", "error", err.Error())
		s.writeError(w, http.StatusInternalServerError, "Failed to perform search")
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":      "healthy",
		"environment": s.info.Environment,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if s.info.development() {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"environment":  s.info.Environment,
			"addr":         s.info.Addr,
			"cors_origins": s.info.CORSOrigins,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"environment": s.info.Environment,
		"status":      "running",
	})
}

// readable false, если хранилище не умеет читать; ответ уже записан
func (s *Server) readable(w http.ResponseWriter) bool {
	if s.queries == nil {
		s.writeError(w, http.StatusNotImplemented, "Listing queries are not supported by the storage driver")
		return false
	}
	return true
}

// parseSearchQuery: amenities повторяемый параметр; пустые числа означают "не задано"
func parseSearchQuery(q url.Values) (storage.SearchQuery, error) {
	query := storage.SearchQuery{
		Location:  q.Get("location"),
		Amenities: nonEmpty(q["amenities"]),
	}

	var err error
	if query.PriceMin, err = floatParam(q, "priceMin"); err != nil {
		return query, err
	}
	if query.PriceMax, err = floatParam(q, "priceMax"); err != nil {
		return query, err
	}
	if query.Limit, err = intParam(q, "limit", 0); err != nil {
		return query, err
	}
	if query.Page, err = intParam(q, "page", 1); err != nil {
		return query, err
	}
	if query.PageSize, err = intParam(q, "pageSize", storage.DefaultPageSize); err != nil {
		return query, err
	}
	return query, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errBadNumber
	}
	return n, nil
}

func floatParam(q url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, errBadNumber
	}
	return &v, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return nonEmpty(strings.Split(raw, ","))
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
