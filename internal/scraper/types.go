package scraper

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNavigation       = errors.New("page navigation failed")
	ErrMissingSourceURL = errors.New("listing record has no source url")
)

// NavigationError страница целиком не загрузилась; URL пропускается оркестратором
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() []error {
	return []error{ErrNavigation, e.Err}
}

// ListingRecord результат одного визита на страницу объявления.
// Поля не бывают nil: при неудаче остаются "" или пустым срезом.
type ListingRecord struct {
	SourceURL    string   `json:"url"`
	Title        string   `json:"title"`
	PictureURL   string   `json:"picture_url"`
	Description  string   `json:"description"`
	Price        string   `json:"price"`
	Rating       string   `json:"rating"`
	Location     string   `json:"location"`
	Features     []string `json:"features"`
	HouseDetails []string `json:"house_details"`
	Region       string   `json:"region"`
	Country      string   `json:"country"`
}

func NewListingRecord(sourceURL string) *ListingRecord {
	return &ListingRecord{
		SourceURL:    sourceURL,
		Features:     []string{},
		HouseDetails: []string{},
	}
}

func (r *ListingRecord) Validate() error {
	if r == nil || r.SourceURL == "" {
		return ErrMissingSourceURL
	}
	return nil
}

// RegionTask одна пара (регион, страна) на прогон
type RegionTask struct {
	Region  string `json:"region"`
	Country string `json:"country"`
}

// Query строка поиска: "Region, Country" или просто город
func (t RegionTask) Query() string {
	if t.Country == "" {
		return t.Region
	}
	return t.Region + ", " + t.Country
}

type PaginationStats struct {
	PagesVisited  int    `json:"pages_visited"`
	NextClicks    int    `json:"next_clicks"`
	URLsFound     int    `json:"urls_found"`
	StoppedReason string `json:"stopped_reason"`
}

type RegionResult struct {
	Region        string `json:"region"`
	Country       string `json:"country"`
	URLsFound     int    `json:"urls_found"`
	Extracted     int    `json:"extracted"`
	Failed        int    `json:"failed"`
	Inserted      int    `json:"inserted"`
	PagesVisited  int    `json:"pages_visited"`
	StoppedReason string `json:"stopped_reason,omitempty"`
	Error         string `json:"error,omitempty"`
}

type RunSummary struct {
	RunID         string         `json:"run_id"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	TotalListings int            `json:"total_listings"`
	PerCountry    map[string]int `json:"per_country"`
	Regions       []RegionResult `json:"regions"`
}

// Add учитывает результат региона в итогах прогона
func (s *RunSummary) Add(r RegionResult) {
	if s.PerCountry == nil {
		s.PerCountry = map[string]int{}
	}
	s.Regions = append(s.Regions, r)
	s.TotalListings += r.Inserted
	s.PerCountry[r.Country] += r.Inserted
}

// CityResult ответ пути "один город": сами записи и id вставки
type CityResult struct {
	City        string           `json:"city"`
	Places      []*ListingRecord `json:"places"`
	InsertedIDs []string         `json:"inserted_ids"`
	Stats       RegionResult     `json:"stats"`
}
