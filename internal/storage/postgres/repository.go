package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"airbnb-scraper/internal/observability"
	"airbnb-scraper/internal/scraper"
	"airbnb-scraper/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id            BIGSERIAL PRIMARY KEY,
	url           TEXT NOT NULL,
	title         TEXT NOT NULL,
	picture_url   TEXT NOT NULL,
	description   TEXT NOT NULL,
	price         TEXT NOT NULL,
	price_value   NUMERIC(12,2),
	rating        TEXT NOT NULL,
	location      TEXT NOT NULL,
	features      TEXT[] NOT NULL DEFAULT '{}',
	house_details TEXT[] NOT NULL DEFAULT '{}',
	region        TEXT NOT NULL,
	country       TEXT NOT NULL,
	fingerprint   CHAR(64) NOT NULL,
	scraped_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS listings_location_idx ON listings (location);`

// columns порядок совпадает с values()
var columns = []string{
	"url", "title", "picture_url", "description", "price", "price_value", "rating", "location",
	"features", "house_details", "region", "country", "fingerprint", "scraped_at",
}

type Repository struct {
	pool           *pgxpool.Pool
	commandTimeout time.Duration
	logger         *observability.Logger
	now            func() time.Time
}

func NewRepository(ctx context.Context, databaseURL string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Repository{
		pool:           pool,
		commandTimeout: commandTimeout,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// InsertMany одна транзакция на пачку региона
func (r *Repository) InsertMany(ctx context.Context, records []*scraper.ListingRecord) ([]string, error) {
	docs, skipped := storage.BuildDocuments(records, r.now())
	if skipped > 0 {
		r.logger.Warn("Skipped records without url", "count", skipped)
	}
	if len(docs) == 0 {
		return []string{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return []string{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			r.logger.Error("Failed to rollback transaction", "error", err.Error())
		}
	}()

	query := insertQuery()
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		var id int64
		if err := tx.QueryRow(ctx, query, values(doc)...).Scan(&id); err != nil {
			return []string{}, fmt.Errorf("failed to insert listing %s: %w", doc.URL, err)
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	if err := tx.Commit(ctx); err != nil {
		return []string{}, fmt.Errorf("failed to commit listings: %w", err)
	}
	return ids, nil
}

func insertQuery() string {
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		`INSERT INTO listings (%s) VALUES (%s) RETURNING id`,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)
}

func values(doc storage.ListingDocument) []interface{} {
	return []interface{}{
		doc.URL, doc.Title, doc.PictureURL, doc.Description, doc.Price, doc.PriceValue, doc.Rating, doc.Location,
		doc.Features, doc.HouseDetails, doc.Region, doc.Country, doc.Fingerprint, doc.ScrapedAt,
	}
}

func (r *Repository) Close(ctx context.Context) error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}
