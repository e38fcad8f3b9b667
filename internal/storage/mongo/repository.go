package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"airbnb-scraper/internal/observability"
	"airbnb-scraper/internal/scraper"
	"airbnb-scraper/internal/storage"
)

const (
	DefaultDatabase   = "airbnb"
	DefaultCollection = "listings"
)

// document _id отдельно: в общем ListingDocument id строковый
type document struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty"`
	storage.ListingDocument `bson:",inline"`
}

func (d document) listing() storage.ListingDocument {
	out := d.ListingDocument
	if !d.ID.IsZero() {
		out.ID = d.ID.Hex()
	}
	return out
}

type Repository struct {
	client         *mongo.Client
	collection     *mongo.Collection
	commandTimeout time.Duration
	logger         *observability.Logger
	now            func() time.Time
}

func NewRepository(uri, database, collection string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	if database == "" {
		database = DefaultDatabase
	}
	if collection == "" {
		collection = DefaultCollection
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		if discErr := client.Disconnect(context.Background()); discErr != nil {
			logger.Error("Failed to disconnect after ping failure", "error", discErr.Error())
		}
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &Repository{
		client:         client,
		collection:     client.Database(database).Collection(collection),
		commandTimeout: commandTimeout,
		logger:         logger,
		now:            time.Now,
	}, nil
}

// InsertMany неупорядоченная вставка: упавшие документы не мешают остальным
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

	batch := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		batch = append(batch, document{ID: primitive.NewObjectID(), ListingDocument: d})
	}

	result, err := r.collection.InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
	if result == nil {
		return []string{}, fmt.Errorf("failed to insert listings: %w", err)
	}

	failed := map[int]struct{}{}
	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) {
		for _, we := range bulkErr.WriteErrors {
			failed[we.Index] = struct{}{}
		}
	} else if err != nil {
		return []string{}, fmt.Errorf("failed to insert listings: %w", err)
	}

	ids := make([]string, 0, len(result.InsertedIDs))
	for i, raw := range result.InsertedIDs {
		if _, bad := failed[i]; bad {
			continue
		}
		if oid, ok := raw.(primitive.ObjectID); ok {
			ids = append(ids, oid.Hex())
		}
	}

	if err != nil {
		r.logger.Error("Partial insert", "inserted", len(ids), "requested", len(docs), "error", err.Error())
		return ids, fmt.Errorf("failed to insert %d of %d listings: %w", len(docs)-len(ids), len(docs), err)
	}
	return ids, nil
}

func (r *Repository) FindListings(ctx context.Context, filter storage.ListingFilter) ([]storage.ListingDocument, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	opts := options.Find()
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	return r.find(ctx, listingsFilter(filter), opts)
}

// GetListing по ObjectID, иначе по полю id (старые документы)
func (r *Repository) GetListing(ctx context.Context, id string) (*storage.ListingDocument, error) {
	if id == "" {
		return nil, storage.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var doc document
	err := r.collection.FindOne(ctx, idFilter(id)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing %s: %w", id, err)
	}

	listing := doc.listing()
	return &listing, nil
}

func (r *Repository) Filters(ctx context.Context, query storage.FilterQuery) (*storage.FilterOptions, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	filter := filtersFilter(query)
	out := &storage.FilterOptions{}

	fields := []struct {
		name string
		dst  *[]string
	}{
		{"features", &out.Features},
		{"region", &out.Regions},
		{"country", &out.Countries},
	}
	for _, f := range fields {
		values, err := r.collection.Distinct(ctx, f.name, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch distinct %s: %w", f.name, err)
		}
		*f.dst = truncate(stringsOf(values), query.Limit)
	}

	return out, nil
}

func (r *Repository) Search(ctx context.Context, query storage.SearchQuery) (*storage.SearchPage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	filter := searchFilter(query)
	page, skip, size := query.Window()

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}

	listings, err := r.find(ctx, filter, options.Find().SetSkip(int64(skip)).SetLimit(int64(size)))
	if err != nil {
		return nil, err
	}

	return &storage.SearchPage{
		Listings:    listings,
		TotalCount:  total,
		PageCount:   storage.PageCount(total, size),
		CurrentPage: page,
	}, nil
}

func (r *Repository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]storage.ListingDocument, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer func() {
		if err := cursor.Close(ctx); err != nil {
			r.logger.Error("Failed to close cursor", "error", err.Error())
		}
	}()

	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}

	out := make([]storage.ListingDocument, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.listing())
	}
	return out, nil
}

func (r *Repository) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}

// Построители фильтров

// containsFold подстрока без учёта регистра; пользовательский ввод экранируется
func containsFold(term string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
}

func listingsFilter(f storage.ListingFilter) bson.M {
	filter := bson.M{}
	if f.City != "" {
		filter["location"] = containsFold(f.City)
	}
	return filter
}

func filtersFilter(q storage.FilterQuery) bson.M {
	filter := bson.M{}
	if q.Search != "" {
		filter["location"] = containsFold(q.Search)
	}
	if len(q.Features) > 0 {
		filter["features"] = bson.M{"$all": q.Features}
	}
	return filter
}

func searchFilter(q storage.SearchQuery) bson.M {
	filter := bson.M{}
	if q.Location != "" {
		filter["location"] = containsFold(q.Location)
	}
	if q.PriceMin != nil || q.PriceMax != nil {
		price := bson.M{}
		if q.PriceMin != nil {
			price["$gte"] = *q.PriceMin
		}
		if q.PriceMax != nil {
			price["$lte"] = *q.PriceMax
		}
		filter["price_value"] = price
	}
	if len(q.Amenities) > 0 {
		filter["features"] = bson.M{"$all": q.Amenities}
	}
	return filter
}

func idFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"id": id}
}

func stringsOf(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(items []string, limit int64) []string {
	if limit > 0 && int64(len(items)) > limit {
		return items[:limit]
	}
	return items
}
