package storage

import (
	"context"
	"errors"
	"testing"

	"retaildc/internal/schema"
)

// fakeRepo records the last replace it was asked to do.
type fakeRepo struct {
	closed bool
	table  string
	rows   [][]any
	err    error
}

func (f *fakeRepo) ReplaceTable(_ context.Context, table string, _ []schema.Column, rows [][]any) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.table, f.rows = table, rows
	return int64(len(rows)), nil
}

func (f *fakeRepo) Close() { f.closed = true }

func TestNew_UsesRegisteredFactory(t *testing.T) {
	t.Parallel()

	var got Config
	Register("fake-new", func(_ context.Context, cfg Config) (Repository, error) {
		got = cfg
		return &fakeRepo{}, nil
	})

	cfg := Config{Kind: "fake-new", DSN: "wh", Database: "retail", BatchSize: 7}
	if _, err := New(context.Background(), cfg); err != nil {
		t.Fatalf("New: %v", err)
	}
	if got != cfg {
		t.Fatalf("factory cfg = %+v, want %+v", got, cfg)
	}

	found := false
	for _, k := range ListKinds() {
		found = found || k == "fake-new"
	}
	if !found {
		t.Fatalf("ListKinds() = %v, missing fake-new", ListKinds())
	}
}

func TestNew_UnsupportedKind(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "oracle"})
	if err == nil || err.Error() != "unsupported storage.kind=oracle" {
		t.Fatalf("err = %v", err)
	}
}

func TestRegister_LastWins(t *testing.T) {
	t.Parallel()

	first, second := &fakeRepo{}, &fakeRepo{}
	Register("fake-twice", func(context.Context, Config) (Repository, error) { return first, nil })
	Register("fake-twice", func(context.Context, Config) (Repository, error) { return second, nil })

	r, err := New(context.Background(), Config{Kind: "fake-twice"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r != second {
		t.Fatal("second registration did not replace the first")
	}
}

func TestNew_FactoryError(t *testing.T) {
	t.Parallel()

	refused := errors.New("connection refused")
	Register("fake-err", func(context.Context, Config) (Repository, error) { return nil, refused })
	if _, err := New(context.Background(), Config{Kind: "fake-err"}); !errors.Is(err, refused) {
		t.Fatalf("err = %v, want %v", err, refused)
	}
}

func TestWithClose(t *testing.T) {
	t.Parallel()

	backend := &fakeRepo{}
	closes := 0
	r := WithClose(backend, func() { closes++ })

	n, err := r.ReplaceTable(context.Background(), "dim_users", nil, [][]any{{"u1"}, {"u2"}})
	if err != nil || n != 2 || backend.table != "dim_users" {
		t.Fatalf("ReplaceTable = %d, %v; backend table %q", n, err, backend.table)
	}

	r.Close()
	r.Close()
	if closes != 1 {
		t.Fatalf("closeFn ran %d times, want 1", closes)
	}
	if backend.closed {
		t.Fatal("WithClose must not call the backend's own Close")
	}

	WithClose(backend, nil).Close()
}
