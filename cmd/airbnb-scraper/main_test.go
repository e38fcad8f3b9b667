package main

import (
	"encoding/json"
	"reflect"
	"testing"

	"airbnb-scraper/internal/scraper"
)

func TestParseSearchFile(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		baseURL  string
		wantURLs []string
		wantNext bool
	}{
		{
			name: "cards and next",
			html: `<a class="atm_7l_1j28jx2" href="/rooms/7">a</a>
				<a aria-label="Next" href="/s/next">Next</a>`,
			baseURL:  "https://www.airbnb.ca",
			wantURLs: []string{"https://www.airbnb.ca/rooms/7"},
			wantNext: true,
		},
		{
			name:     "default base url",
			html:     `<a class="atm_7l_1j28jx2" href="/rooms/8">a</a>`,
			wantURLs: []string{scraper.DefaultBaseURL + "/rooms/8"},
		},
		{
			name:     "empty page",
			html:     `<html><body></body></html>`,
			wantURLs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := parseSearchFile(tt.html, tt.baseURL, scraper.DefaultSelectors())
			if err != nil {
				t.Fatalf("parseSearchFile() error = %v", err)
			}
			if !reflect.DeepEqual(page.URLs, tt.wantURLs) {
				t.Errorf("URLs = %v, want %v", page.URLs, tt.wantURLs)
			}
			if page.HasNext != tt.wantNext {
				t.Errorf("HasNext = %v, want %v", page.HasNext, tt.wantNext)
			}
		})
	}
}

func TestSearchPageJSON(t *testing.T) {
	page, err := parseSearchFile(`<p>nothing</p>`, "", scraper.DefaultSelectors())
	if err != nil {
		t.Fatalf("parseSearchFile() error = %v", err)
	}
	raw, err := json.Marshal(page)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if got, want := string(raw), `{"urls":[],"has_next":false}`; got != want {
		t.Errorf("json = %s, want %s", got, want)
	}
}
