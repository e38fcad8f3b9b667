package storage

import (
	"context"
	"errors"
	"time"

	"airbnb-scraper/internal/checksum"
	"airbnb-scraper/internal/normalize"
	"airbnb-scraper/internal/scraper"
)

var (
	ErrNotFound  = errors.New("listing not found")
	ErrInvalidID = errors.New("invalid listing id")
)

const DefaultPageSize = 20

// ListingDocument запись объявления в том виде, в каком она лежит в хранилище
type ListingDocument struct {
	ID           string    `bson:"-" json:"_id,omitempty"`
	URL          string    `bson:"url" json:"url"`
	Title        string    `bson:"title" json:"title"`
	PictureURL   string    `bson:"picture_url" json:"picture_url"`
	Description  string    `bson:"description" json:"description"`
	Price        string    `bson:"price" json:"price"`
	PriceValue   *float64  `bson:"price_value,omitempty" json:"price_value,omitempty"`
	Rating       string    `bson:"rating" json:"rating"`
	Location     string    `bson:"location" json:"location"`
	Features     []string  `bson:"features" json:"features"`
	HouseDetails []string  `bson:"house_details" json:"house_details"`
	Region       string    `bson:"region,omitempty" json:"region,omitempty"`
	Country      string    `bson:"country,omitempty" json:"country,omitempty"`
	Fingerprint  string    `bson:"fingerprint" json:"fingerprint"`
	ScrapedAt    time.Time `bson:"scraped_at" json:"scraped_at"`
}

// Repository запись пачки объявлений региона.
// Короче входа список id означает частичный сбой, пустой с ошибкой означает полный.
type Repository interface {
	InsertMany(ctx context.Context, records []*scraper.ListingRecord) ([]string, error)
	Close(ctx context.Context) error
}

// ListingQueries чтение для HTTP API; реализовано только у mongo
type ListingQueries interface {
	FindListings(ctx context.Context, filter ListingFilter) ([]ListingDocument, error)
	GetListing(ctx context.Context, id string) (*ListingDocument, error)
	Filters(ctx context.Context, query FilterQuery) (*FilterOptions, error)
	Search(ctx context.Context, query SearchQuery) (*SearchPage, error)
}

type ListingFilter struct {
	City  string
	Limit int64
}

type FilterQuery struct {
	Search   string
	Features []string
	Limit    int64
}

type FilterOptions struct {
	Features  []string `json:"features"`
	Regions   []string `json:"regions"`
	Countries []string `json:"countries"`
}

type SearchQuery struct {
	Location  string
	PriceMin  *float64
	PriceMax  *float64
	Amenities []string
	Page      int
	PageSize  int
	Limit     int
}

// Window skip и размер страницы. limit меньше pageSize урезает страницу, но не сдвигает skip.
func (q SearchQuery) Window() (page, skip, size int) {
	page = q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	size = pageSize
	if q.Limit > 0 && q.Limit < pageSize {
		size = q.Limit
	}
	return page, (page - 1) * pageSize, size
}

type SearchPage struct {
	Listings    []ListingDocument `json:"listings"`
	TotalCount  int64             `json:"totalCount"`
	PageCount   int64             `json:"pageCount"`
	CurrentPage int               `json:"currentPage"`
}

// PageCount ceil(total/size)
func PageCount(total int64, size int) int64 {
	if size <= 0 {
		return 0
	}
	return (total + int64(size) - 1) / int64(size)
}

// BuildDocuments готовит записи к вставке: отпечаток, числовая цена, время.
// Записи без URL пропускаются, их число возвращается отдельно.
func BuildDocuments(records []*scraper.ListingRecord, now time.Time) ([]ListingDocument, int) {
	gen := checksum.NewGenerator()
	docs := make([]ListingDocument, 0, len(records))
	skipped := 0

	for _, r := range records {
		if err := r.Validate(); err != nil {
			skipped++
			continue
		}

		doc := ListingDocument{
			URL:          r.SourceURL,
			Title:        r.Title,
			PictureURL:   r.PictureURL,
			Description:  r.Description,
			Price:        r.Price,
			Rating:       r.Rating,
			Location:     r.Location,
			Features:     nonNil(r.Features),
			HouseDetails: nonNil(r.HouseDetails),
			Region:       r.Region,
			Country:      r.Country,
			Fingerprint:  gen.Fingerprint(r),
			ScrapedAt:    now.UTC(),
		}
		if value, ok := normalize.ParsePrice(r.Price); ok {
			doc.PriceValue = &value
		}
		docs = append(docs, doc)
	}

	return docs, skipped
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
