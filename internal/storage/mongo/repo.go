// Package mongo implements a MongoDB-backed storage.Repository. Each table is
// a collection of documents keyed by column name. A replace fills a staging
// collection and swaps it over the target with renameCollection and
// dropTarget, so readers never observe a partial collection.
package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"retaildc/internal/etlerr"
	"retaildc/internal/schema"
	"retaildc/internal/storage"
)

// Config holds MongoDB repository configuration.
type Config struct {
	URI       string
	Database  string
	BatchSize int
}

// Repository is a MongoDB-backed implementation of storage.Repository.
type Repository struct {
	client *mongo.Client
	cfg    Config
}

// NewRepository connects and pings MongoDB. The database defaults to the one
// named in the URI path.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if cfg.Database == "" {
		cfg.Database = databaseFromURI(cfg.URI)
	}
	if cfg.Database == "" {
		return nil, nil, fmt.Errorf("mongo: database must be set in config or URI")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, nil, etlerr.Connectivity("mongo: ping", err)
	}
	closeFn := func() { _ = client.Disconnect(context.Background()) }
	return &Repository{client: client, cfg: cfg}, closeFn, nil
}

// databaseFromURI extracts the path segment of mongodb://host/db?opts.
func databaseFromURI(uri string) string {
	for _, p := range []string{"mongodb+srv://", "mongodb://"} {
		uri = strings.TrimPrefix(uri, p)
	}
	if i := strings.Index(uri, "@"); i >= 0 {
		uri = uri[i+1:]
	}
	i := strings.Index(uri, "/")
	if i < 0 {
		return ""
	}
	db := uri[i+1:]
	if q := strings.Index(db, "?"); q >= 0 {
		db = db[:q]
	}
	return db
}

// bsonValue converts a canonical value into its BSON form: decimals become
// Decimal128, malformed dates become null.
func bsonValue(v any) (any, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		d, err := bson.ParseDecimal128(x.String())
		if err != nil {
			return nil, fmt.Errorf("decimal %s: %w", x, err)
		}
		return d, nil
	case schema.MalformedDate:
		return nil, nil
	case time.Time:
		return x.UTC(), nil
	default:
		return v, nil
	}
}

// documents converts rows into ordered BSON documents.
func documents(columns []string, rows [][]any) ([]any, error) {
	docs := make([]any, len(rows))
	for i, row := range rows {
		doc := make(bson.D, 0, len(columns))
		for j, c := range columns {
			v, err := bsonValue(row[j])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i, c, err)
			}
			doc = append(doc, bson.E{Key: c, Value: v})
		}
		docs[i] = doc
	}
	return docs, nil
}

// ReplaceTable implements storage.Repository.
func (r *Repository) ReplaceTable(ctx context.Context, table string, cols []schema.Column, rows [][]any) (int64, error) {
	if len(cols) == 0 {
		return 0, fmt.Errorf("mongo: replace %s: columns must not be empty", table)
	}
	db := r.client.Database(r.cfg.Database)
	staging := db.Collection(storage.StagingName(table))
	if err := staging.Drop(ctx); err != nil {
		return 0, fmt.Errorf("mongo: drop staging for %s: %w", table, err)
	}
	// The swap below needs the staging collection to exist even for an
	// empty batch.
	if err := db.CreateCollection(ctx, staging.Name()); err != nil {
		return 0, fmt.Errorf("mongo: create staging for %s: %w", table, err)
	}

	batch := r.cfg.BatchSize
	if batch <= 0 {
		batch = storage.DefaultBatchSize
	}
	n, err := storage.CopyBatches(ctx, storage.ColumnNames(cols), rows, batch,
		func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			docs, err := documents(columns, rows)
			if err != nil {
				return 0, err
			}
			res, err := staging.InsertMany(ctx, docs)
			if err != nil {
				return 0, err
			}
			return int64(len(res.InsertedIDs)), nil
		})
	if err != nil {
		_ = staging.Drop(context.WithoutCancel(ctx))
		return 0, fmt.Errorf("mongo: load %s: %w", staging.Name(), err)
	}

	cmd := bson.D{
		{Key: "renameCollection", Value: r.cfg.Database + "." + staging.Name()},
		{Key: "to", Value: r.cfg.Database + "." + table},
		{Key: "dropTarget", Value: true},
	}
	if err := r.client.Database("admin").RunCommand(ctx, cmd).Err(); err != nil {
		return 0, fmt.Errorf("mongo: swap %s: %w", table, err)
	}
	return n, nil
}
