package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"retaildc/internal/schema"
	"retaildc/internal/storage"
)

func TestDatabaseFromURI(t *testing.T) {
	cases := map[string]string{
		"mongodb://localhost:27017/retail":                      "retail",
		"mongodb://u:p@host/sales?authSource=admin":             "sales",
		"mongodb+srv://u:p@cluster0.example.net/dw?retryWrites": "dw",
		"mongodb://localhost:27017":                             "",
	}
	for in, want := range cases {
		require.Equal(t, want, databaseFromURI(in), in)
	}
}

func TestDocuments(t *testing.T) {
	day := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	docs, err := documents(
		[]string{"product_code", "product_price", "date_added"},
		[][]any{{"A1", decimal.RequireFromString("1.50"), day}, {"B2", nil, schema.MalformedDate{Raw: "x"}}},
	)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	first := docs[0].(bson.D)
	require.Equal(t, "product_code", first[0].Key)
	require.Equal(t, "A1", first[0].Value)
	require.Equal(t, "1.5", first[1].Value.(bson.Decimal128).String())
	require.Equal(t, day, first[2].Value)

	second := docs[1].(bson.D)
	require.Nil(t, second[1].Value)
	require.Nil(t, second[2].Value)
}

func TestRegistrationPassesDatabase(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() {}, nil
	}
	repo, err := storage.New(context.Background(), storage.Config{Kind: "mongo", DSN: "mongodb://h", Database: "retail"})
	require.NoError(t, err)
	repo.Close()
	require.Equal(t, Config{URI: "mongodb://h", Database: "retail", BatchSize: storage.DefaultBatchSize}, got)
}

// TestReplaceTable_Integration runs when TEST_MONGO_URI is set, e.g.
//
//	TEST_MONGO_URI='mongodb://localhost:27017/retaildc_test' go test ./internal/storage/mongo -run Integration
func TestReplaceTable_Integration(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("skipping integration test: set TEST_MONGO_URI to run")
	}
	ctx := context.Background()
	repo, closeFn, err := NewRepository(ctx, Config{URI: uri, BatchSize: 1})
	require.NoError(t, err)
	defer closeFn()

	cols := []schema.Column{{Name: "date_uuid", Type: schema.TypeString, Required: true}}
	for i := 0; i < 2; i++ {
		n, err := repo.ReplaceTable(ctx, "dim_date_times", cols, [][]any{{"d1"}, {"d2"}})
		require.NoError(t, err)
		require.EqualValues(t, 2, n)
	}
	count, err := repo.client.Database(repo.cfg.Database).Collection("dim_date_times").CountDocuments(ctx, bson.D{})
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}
