package mssql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"airbnb-scraper/internal/observability"
	"airbnb-scraper/internal/scraper"
	"airbnb-scraper/internal/storage"
)

const schema = `
IF OBJECT_ID(N'dbo.TblListings', N'U') IS NULL
CREATE TABLE dbo.TblListings (
	[UID]          BIGINT IDENTITY(1,1) PRIMARY KEY,
	[URL]          NVARCHAR(2048) NOT NULL,
	[Title]        NVARCHAR(1024) NOT NULL,
	[PictureURL]   NVARCHAR(2048) NOT NULL,
	[Description]  NVARCHAR(MAX)  NOT NULL,
	[Price]        NVARCHAR(256)  NOT NULL,
	[PriceValue]   DECIMAL(12,2)  NULL,
	[Rating]       NVARCHAR(64)   NOT NULL,
	[Location]     NVARCHAR(512)  NOT NULL,
	[Features]     NVARCHAR(MAX)  NOT NULL,
	[HouseDetails] NVARCHAR(MAX)  NOT NULL,
	[Region]       NVARCHAR(128)  NOT NULL,
	[Country]      NVARCHAR(128)  NOT NULL,
	[CheckSum]     CHAR(64)       NOT NULL,
	[ScrapedAt]    DATETIME2      NOT NULL
);`

const insertListing = `
	INSERT INTO TblListings
		([URL], [Title], [PictureURL], [Description], [Price], [PriceValue], [Rating], [Location],
		 [Features], [HouseDetails], [Region], [Country], [CheckSum], [ScrapedAt])
	OUTPUT INSERTED.UID
	VALUES
		(@URL, @Title, @PictureURL, @Description, @Price, @PriceValue, @Rating, @Location,
		 @Features, @HouseDetails, @Region, @Country, @CheckSum, @ScrapedAt);
`

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
	now            func() time.Time
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := prepare(db, logger); err != nil {
		return nil, err
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// prepare проверяет соединение и схему; при ошибке пул закрывается
func prepare(db *sql.DB, logger *observability.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		err = fmt.Errorf("failed to ping database: %w", err)
	} else if _, execErr := db.ExecContext(ctx, schema); execErr != nil {
		err = fmt.Errorf("failed to ensure schema: %w", execErr)
	}
	if err == nil {
		return nil
	}

	if closeErr := db.Close(); closeErr != nil {
		logger.Error("Failed to close database after init failure", "error", closeErr.Error())
	}
	return err
}

// InsertMany вся пачка региона в одной транзакции: либо все id, либо ни одного
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return []string{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Error("Failed to rollback transaction", "error", err.Error())
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertListing)
	if err != nil {
		return []string{}, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		args, err := namedArgs(doc)
		if err != nil {
			return []string{}, err
		}

		var uid int64
		if err := stmt.QueryRowContext(ctx, args...).Scan(&uid); err != nil {
			return []string{}, fmt.Errorf("failed to insert listing %s: %w", doc.URL, err)
		}
		ids = append(ids, strconv.FormatInt(uid, 10))
	}

	if err := tx.Commit(); err != nil {
		return []string{}, fmt.Errorf("failed to commit listings: %w", err)
	}

	return ids, nil
}

// namedArgs списки хранятся JSON-массивами в NVARCHAR(MAX)
func namedArgs(doc storage.ListingDocument) ([]interface{}, error) {
	features, err := json.Marshal(doc.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}
	details, err := json.Marshal(doc.HouseDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to encode house details: %w", err)
	}

	var priceValue sql.NullFloat64
	if doc.PriceValue != nil {
		priceValue = sql.NullFloat64{Float64: *doc.PriceValue, Valid: true}
	}

	return []interface{}{
		sql.Named("URL", doc.URL),
		sql.Named("Title", doc.Title),
		sql.Named("PictureURL", doc.PictureURL),
		sql.Named("Description", doc.Description),
		sql.Named("Price", doc.Price),
		sql.Named("PriceValue", priceValue),
		sql.Named("Rating", doc.Rating),
		sql.Named("Location", doc.Location),
		sql.Named("Features", string(features)),
		sql.Named("HouseDetails", string(details)),
		sql.Named("Region", doc.Region),
		sql.Named("Country", doc.Country),
		sql.Named("CheckSum", doc.Fingerprint),
		sql.Named("ScrapedAt", doc.ScrapedAt),
	}, nil
}

// Close закрывает соединение с БД
func (r *Repository) Close(ctx context.Context) error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
