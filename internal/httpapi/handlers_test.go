package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"airbnb-scraper/internal/observability"
	"airbnb-scraper/internal/scraper"
	"airbnb-scraper/internal/storage"
)

type fakeRunner struct {
	summary *scraper.RunSummary
	city    *scraper.CityResult
	err     error

	tasks    []scraper.RegionTask
	cityArgs []string
	// started закрывается при входе в Run, release держит его до закрытия
	started chan struct{}
	release chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, tasks []scraper.RegionTask) (*scraper.RunSummary, error) {
	f.tasks = tasks
	if f.started != nil {
		close(f.started)
		<-f.release
	}
	return f.summary, f.err
}

func (f *fakeRunner) RunCity(ctx context.Context, city string) (*scraper.CityResult, error) {
	f.cityArgs = append(f.cityArgs, city)
	return f.city, f.err
}

// writeOnly хранилище без чтения (mssql, postgres)
type writeOnly struct{}

func (writeOnly) InsertMany(ctx context.Context, records []*scraper.ListingRecord) ([]string, error) {
	return nil, nil
}
func (writeOnly) Close(ctx context.Context) error { return nil }

type fakeStore struct {
	writeOnly

	listings []storage.ListingDocument
	err      error

	lastFilter storage.ListingFilter
	lastFQ     storage.FilterQuery
	lastSearch storage.SearchQuery
}

func (f *fakeStore) FindListings(ctx context.Context, filter storage.ListingFilter) ([]storage.ListingDocument, error) {
	f.lastFilter = filter
	return f.listings, f.err
}

func (f *fakeStore) GetListing(ctx context.Context, id string) (*storage.ListingDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.listings {
		if f.listings[i].ID == id {
			return &f.listings[i], nil
		}
	}
	return nil, storage.ErrNotFound
}

func (f *fakeStore) Filters(ctx context.Context, q storage.FilterQuery) (*storage.FilterOptions, error) {
	f.lastFQ = q
	if f.err != nil {
		return nil, f.err
	}
	return &storage.FilterOptions{Features: []string{"Wifi"}, Regions: []string{"Maine"}, Countries: []string{"USA"}}, nil
}

func (f *fakeStore) Search(ctx context.Context, q storage.SearchQuery) (*storage.SearchPage, error) {
	f.lastSearch = q
	if f.err != nil {
		return nil, f.err
	}
	page, _, size := q.Window()
	total := int64(len(f.listings))
	return &storage.SearchPage{
		Listings:    f.listings,
		TotalCount:  total,
		PageCount:   storage.PageCount(total, size),
		CurrentPage: page,
	}, nil
}

var testTasks = []scraper.RegionTask{
	{Region: "Ontario", Country: "Canada"},
	{Region: "Maine", Country: "USA"},
}

func newTestServer(runner Runner, repo storage.Repository, info Info) http.Handler {
	return NewServer(runner, testTasks, repo, info, observability.NewNopLogger()).Handler()
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestScrapeNorthAmerica(t *testing.T) {
	runner := &fakeRunner{summary: &scraper.RunSummary{
		RunID:         "run-1",
		TotalListings: 5,
		PerCountry:    map[string]int{"Canada": 2, "USA": 3},
	}}
	h := newTestServer(runner, writeOnly{}, Info{})

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := do(t, h, method, "/scrape-north-america")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, body %s", method, rec.Code, rec.Body.String())
		}

		var body struct {
			Message        string `json:"message"`
			TotalListings  int    `json:"total_listings"`
			CanadaListings int    `json:"canada_listings"`
			USListings     int    `json:"us_listings"`
			Summary        struct {
				RunID string `json:"run_id"`
			} `json:"summary"`
		}
		decode(t, rec, &body)

		if body.Message != "Scraping completed" || body.TotalListings != 5 ||
			body.CanadaListings != 2 || body.USListings != 3 || body.Summary.RunID != "run-1" {
			t.Errorf("%s body = %+v", method, body)
		}
	}
	if !reflect.DeepEqual(runner.tasks, testTasks) {
		t.Errorf("Run() tasks = %v, want configured regions", runner.tasks)
	}
}

func TestScrapeNorthAmericaFailure(t *testing.T) {
	h := newTestServer(&fakeRunner{err: errors.New("browser session start failed")}, writeOnly{}, Info{})

	rec := do(t, h, http.MethodGet, "/scrape-north-america")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] != "Failed to scrape listings" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestScrapeRejectsConcurrentRun(t *testing.T) {
	runner := &fakeRunner{
		summary: &scraper.RunSummary{PerCountry: map[string]int{}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	h := newTestServer(runner, writeOnly{}, Info{})

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- do(t, h, http.MethodGet, "/scrape-north-america") }()
	<-runner.started

	if rec := do(t, h, http.MethodGet, "/scrape-city-data?city=Boise"); rec.Code != http.StatusConflict {
		t.Errorf("concurrent scrape status = %d, want 409", rec.Code)
	}

	close(runner.release)
	if rec := <-done; rec.Code != http.StatusOK {
		t.Errorf("first scrape status = %d, want 200", rec.Code)
	}
}

func TestScrapeCity(t *testing.T) {
	runner := &fakeRunner{city: &scraper.CityResult{
		City:        "Boise",
		Places:      []*scraper.ListingRecord{scraper.NewListingRecord("https://www.airbnb.com/rooms/1")},
		InsertedIDs: []string{"abc"},
	}}
	h := newTestServer(runner, writeOnly{}, Info{})

	rec := do(t, h, http.MethodGet, "/scrape-city-data?city=Boise")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		City        string           `json:"city"`
		Places      []map[string]any `json:"places"`
		InsertedIDs []string         `json:"inserted_ids"`
	}
	decode(t, rec, &body)
	if body.City != "Boise" || len(body.Places) != 1 || !reflect.DeepEqual(body.InsertedIDs, []string{"abc"}) {
		t.Errorf("body = %+v", body)
	}

	rec = do(t, h, http.MethodGet, "/scrape-city-data")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing city status = %d, want 400", rec.Code)
	}
	if len(runner.cityArgs) != 1 {
		t.Errorf("RunCity calls = %d, want 1", len(runner.cityArgs))
	}
}

func TestReadRoutesWithoutQueries(t *testing.T) {
	h := newTestServer(&fakeRunner{}, writeOnly{}, Info{})

	for _, path := range []string{"/get-listings", "/get-listing/1", "/filters", "/search"} {
		if rec := do(t, h, http.MethodGet, path); rec.Code != http.StatusNotImplemented {
			t.Errorf("%s status = %d, want 501", path, rec.Code)
		}
	}
}

func TestGetListings(t *testing.T) {
	store := &fakeStore{listings: []storage.ListingDocument{{ID: "1", Title: "Cabin"}}}
	h := newTestServer(&fakeRunner{}, store, Info{})

	rec := do(t, h, http.MethodGet, "/get-listings?city=Portland&limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []storage.ListingDocument
	decode(t, rec, &got)
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("listings = %+v", got)
	}
	if store.lastFilter != (storage.ListingFilter{City: "Portland", Limit: 5}) {
		t.Errorf("filter = %+v", store.lastFilter)
	}

	if rec := do(t, h, http.MethodGet, "/get-listings?limit=ten"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestGetListing(t *testing.T) {
	store := &fakeStore{listings: []storage.ListingDocument{{ID: "65f0c2", Title: "Loft"}}}
	h := newTestServer(&fakeRunner{}, store, Info{})

	rec := do(t, h, http.MethodGet, "/get-listing/65f0c2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got storage.ListingDocument
	decode(t, rec, &got)
	if got.Title != "Loft" {
		t.Errorf("Title = %q", got.Title)
	}

	rec = do(t, h, http.MethodGet, "/get-listing/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", rec.Code)
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["error"] != "Listing not found" {
		t.Errorf("error = %q", body["error"])
	}

	store.err = errors.New("server selection timeout")
	if rec := do(t, h, http.MethodGet, "/get-listing/65f0c2"); rec.Code != http.StatusInternalServerError {
		t.Errorf("store failure status = %d, want 500", rec.Code)
	}
}

func TestFilters(t *testing.T) {
	store := &fakeStore{}
	h := newTestServer(&fakeRunner{}, store, Info{})

	rec := do(t, h, http.MethodGet, "/filters?search=maine&features=Wifi,%20Pool,")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := storage.FilterQuery{Search: "maine", Features: []string{"Wifi", "Pool"}, Limit: defaultFiltersLimit}
	if !reflect.DeepEqual(store.lastFQ, want) {
		t.Errorf("query = %+v, want %+v", store.lastFQ, want)
	}

	var got storage.FilterOptions
	decode(t, rec, &got)
	if !reflect.DeepEqual(got.Countries, []string{"USA"}) {
		t.Errorf("Countries = %v", got.Countries)
	}
}

func TestSearch(t *testing.T) {
	store := &fakeStore{listings: make([]storage.ListingDocument, 45)}
	h := newTestServer(&fakeRunner{}, store, Info{})

	rec := do(t, h, http.MethodGet, "/search?location=Bar+Harbor&priceMin=50&priceMax=300.5&amenities=Wifi&amenities=Kitchen&page=2&limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	q := store.lastSearch
	if q.Location != "Bar Harbor" || q.Page != 2 || q.PageSize != storage.DefaultPageSize || q.Limit != 10 {
		t.Errorf("query = %+v", q)
	}
	if q.PriceMin == nil || *q.PriceMin != 50 || q.PriceMax == nil || *q.PriceMax != 300.5 {
		t.Errorf("price range = %v..%v", q.PriceMin, q.PriceMax)
	}
	if !reflect.DeepEqual(q.Amenities, []string{"Wifi", "Kitchen"}) {
		t.Errorf("Amenities = %v", q.Amenities)
	}

	var body struct {
		TotalCount  int64 `json:"totalCount"`
		PageCount   int64 `json:"pageCount"`
		CurrentPage int   `json:"currentPage"`
	}
	decode(t, rec, &body)
	if body.TotalCount != 45 || body.PageCount != 5 || body.CurrentPage != 2 {
		t.Errorf("page = %+v, want total 45, 5 pages, current 2", body)
	}
}

func TestSearchRejectsBadNumbers(t *testing.T) {
	h := newTestServer(&fakeRunner{}, &fakeStore{}, Info{})

	tests := []string{
		"/search?priceMin=cheap",
		"/search?priceMax=1e",
		"/search?limit=1.5",
		"/search?page=two",
		"/search?pageSize=x",
	}
	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, target)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["error"] != "Invalid numeric parameter" {
				t.Errorf("error = %q", body["error"])
			}
		})
	}
}

func TestHealthAndInfo(t *testing.T) {
	info := Info{Environment: "development", Addr: ":5000", CORSOrigins: []string{"http://localhost:4200"}}

	rec := do(t, newTestServer(&fakeRunner{}, writeOnly{}, info), http.MethodGet, "/health")
	var health map[string]string
	decode(t, rec, &health)
	if health["status"] != "healthy" || health["environment"] != "development" {
		t.Errorf("health = %v", health)
	}

	rec = do(t, newTestServer(&fakeRunner{}, writeOnly{}, info), http.MethodGet, "/info")
	var dev map[string]any
	decode(t, rec, &dev)
	if dev["addr"] != ":5000" || dev["cors_origins"] == nil {
		t.Errorf("development info = %v", dev)
	}

	info.Environment = "production"
	rec = do(t, newTestServer(&fakeRunner{}, writeOnly{}, info), http.MethodGet, "/info")
	var prod map[string]any
	decode(t, rec, &prod)
	if prod["status"] != "running" {
		t.Errorf("production info = %v", prod)
	}
	if _, ok := prod["addr"]; ok {
		t.Errorf("production info leaks addr: %v", prod)
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(&fakeRunner{}, writeOnly{}, Info{CORSOrigins: []string{"http://localhost:4200"}})

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	req.Header.Set("Origin", "http://localhost:4200")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:4200" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "GET") {
		t.Errorf("Allow-Methods = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin allowed: %q", got)
	}
}
