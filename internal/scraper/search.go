package scraper

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://www.airbnb.com"

// SearchParams переменная часть шаблона поиска
type SearchParams struct {
	BaseURL             string
	Adults              int
	TripLength          string
	MonthlyStartDate    string // YYYY-MM-DD
	MonthlyEndDate      string
	MonthlyLengthMonths int
}

func DefaultSearchParams() SearchParams {
	return SearchParams{
		BaseURL:             DefaultBaseURL,
		Adults:              3,
		TripLength:          "one_week",
		MonthlyStartDate:    "2024-12-01",
		MonthlyEndDate:      "2026-12-01",
		MonthlyLengthMonths: 12,
	}
}

// BuildSearchURL единственное место, где собирается контракт параметров поиска сайта.
// Чистая функция от параметров и строки запроса.
func BuildSearchURL(p SearchParams, query string) string {
	base := strings.TrimRight(p.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}

	q := url.Values{}
	q.Set("tab_id", "home_tab")
	q.Add("refinement_paths[]", "/homes")
	q.Add("flexible_trip_lengths[]", p.TripLength)
	q.Set("price_filter_input_type", "0")
	q.Set("channel", "EXPLORE")
	q.Set("date_picker_type", "flexible_dates")
	q.Set("source", "structured_search_input_header")
	q.Set("search_type", "autocomplete_click")
	q.Set("adults", strconv.Itoa(p.Adults))
	q.Set("query", query)

	if p.MonthlyStartDate != "" {
		q.Set("monthly_start_date", p.MonthlyStartDate)
		q.Set("monthly_length", strconv.Itoa(p.MonthlyLengthMonths))
		end := p.MonthlyEndDate
		if end == "" {
			if start, err := time.Parse(time.DateOnly, p.MonthlyStartDate); err == nil {
				end = start.AddDate(0, p.MonthlyLengthMonths, 0).Format(time.DateOnly)
			}
		}
		if end != "" {
			q.Set("monthly_end_date", end)
		}
	}

	return base + "/s/" + url.PathEscape(query) + "/homes?" + q.Encode()
}
