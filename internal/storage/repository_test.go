package storage

import (
	"testing"
	"time"

	"airbnb-scraper/internal/scraper"
)

func TestBuildDocuments(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600))

	priced := scraper.NewListingRecord("https://www.airbnb.com/rooms/1")
	priced.Price = "$1,250 night"
	priced.Region, priced.Country = "Maine", "USA"

	unpriced := scraper.NewListingRecord("https://www.airbnb.com/rooms/2")
	unpriced.Features = nil

	docs, skipped := BuildDocuments([]*scraper.ListingRecord{priced, {}, unpriced, nil}, now)
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}

	if docs[0].PriceValue == nil || *docs[0].PriceValue != 1250 {
		t.Errorf("PriceValue = %v, want 1250", docs[0].PriceValue)
	}
	if docs[0].Price != "$1,250 night" {
		t.Errorf("raw price changed: %q", docs[0].Price)
	}
	if docs[0].Region != "Maine" || docs[0].Country != "USA" {
		t.Errorf("region/country = %q/%q", docs[0].Region, docs[0].Country)
	}
	if len(docs[0].Fingerprint) != 64 {
		t.Errorf("Fingerprint = %q", docs[0].Fingerprint)
	}
	if !docs[0].ScrapedAt.Equal(now) || docs[0].ScrapedAt.Location() != time.UTC {
		t.Errorf("ScrapedAt = %v, want %v in UTC", docs[0].ScrapedAt, now)
	}

	if docs[1].PriceValue != nil {
		t.Errorf("PriceValue = %v, want nil for empty price", *docs[1].PriceValue)
	}
	if docs[1].Features == nil {
		t.Errorf("Features is nil, want empty slice")
	}
}

func TestSearchQueryWindow(t *testing.T) {
	tests := []struct {
		name                         string
		query                        SearchQuery
		wantPage, wantSkip, wantSize int
	}{
		{"defaults", SearchQuery{}, 1, 0, 20},
		{"second page", SearchQuery{Page: 2, PageSize: 10}, 2, 10, 10},
		{"limit shrinks page", SearchQuery{Page: 3, PageSize: 20, Limit: 5}, 3, 40, 5},
		{"limit above page size ignored", SearchQuery{PageSize: 10, Limit: 50}, 1, 0, 10},
		{"negative page", SearchQuery{Page: -4}, 1, 0, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, skip, size := tt.query.Window()
			if page != tt.wantPage || skip != tt.wantSkip || size != tt.wantSize {
				t.Errorf("Window() = (%d, %d, %d), want (%d, %d, %d)", page, skip, size, tt.wantPage, tt.wantSkip, tt.wantSize)
			}
		})
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total int64
		size  int
		want  int64
	}{
		{0, 20, 0},
		{1, 20, 1},
		{40, 20, 2},
		{41, 20, 3},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := PageCount(tt.total, tt.size); got != tt.want {
			t.Errorf("PageCount(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}
