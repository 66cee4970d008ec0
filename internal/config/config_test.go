package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"retaildc/internal/datasource"
	"retaildc/internal/retry"
)

// -----------------------------------------------------------------------------
// Pipeline decoding tests
// -----------------------------------------------------------------------------

const samplePipeline = `{
  "job": "retaildc",
  "sources": {
    "relational": { "dialect": "postgres", "credentials": { "kind": "yaml", "path": "db_creds.yaml" } },
    "api": { "key_env": "RETAIL_API_KEY", "workers": 4, "timeout_seconds": 10 },
    "document": { "command": ["java", "-jar", "tabula.jar"] },
    "object_store": { "parsers": { ".csv": { "comma": ";", "header_map": { "Index": "index" } } } }
  },
  "entities": [
    { "name": "users", "source": { "kind": "relational", "table_match": "user" } },
    { "name": "store_details", "source": { "kind": "api",
        "count_url": "https://api.example/number_stores",
        "item_url": "https://api.example/store_details/{index}",
        "count_field": "number_stores" } },
    { "name": "products", "table": "dim_products_v2",
      "source": { "kind": "objectstore", "address": "s3://data-handling-public/products.csv" } }
  ],
  "cleaning": { "card_lengths": [15, 16], "null_tokens": ["NULL"] },
  "storage": { "kind": "sqlite", "dsn": "file:warehouse.db", "batch_size": 500 },
  "aws": { "region": "eu-west-1" },
  "runtime": { "retry": { "attempts": 5, "initial_ms": 100, "max_ms": 2000 } }
}`

func TestPipeline_Decode(t *testing.T) {
	t.Parallel()

	var p Pipeline
	if err := json.Unmarshal([]byte(samplePipeline), &p); err != nil {
		t.Fatalf("json.Unmarshal(Pipeline): %v", err)
	}

	if p.Job != "retaildc" || len(p.Entities) != 3 {
		t.Fatalf("job=%q entities=%d, want retaildc and 3", p.Job, len(p.Entities))
	}
	if e := p.Entities[0]; e.Name != "users" || e.Source.Kind != datasource.KindRelational || e.Source.TableMatch != "user" {
		t.Fatalf("entities[0] = %#v", e)
	}
	if e := p.Entities[1]; e.Source.CountField != "number_stores" || !strings.Contains(e.Source.ItemURL, "{index}") {
		t.Fatalf("entities[1] = %#v", e)
	}
	if e := p.Entities[2]; e.Table != "dim_products_v2" || e.Source.Address != "s3://data-handling-public/products.csv" {
		t.Fatalf("entities[2] = %#v", e)
	}

	rel := p.Sources.Relational
	if rel.Dialect != "postgres" || rel.Credentials.Kind != "yaml" || rel.Credentials.Path != "db_creds.yaml" {
		t.Fatalf("relational = %#v", rel)
	}
	if p.Sources.API.Workers != 4 || p.Sources.API.Timeout() != 10*time.Second {
		t.Fatalf("api = %#v", p.Sources.API)
	}
	if !reflect.DeepEqual(p.Sources.Document.Command, []string{"java", "-jar", "tabula.jar"}) {
		t.Fatalf("document.command = %#v", p.Sources.Document.Command)
	}
	csvOpts := p.Sources.ObjectStore.Parsers[".csv"]
	if csvOpts.Rune("comma", ',') != ';' || csvOpts.StringMap("header_map")["Index"] != "index" {
		t.Fatalf("csv parser options = %#v", csvOpts)
	}
	if !reflect.DeepEqual(p.Cleaning.CardLengths, []int{15, 16}) {
		t.Fatalf("card_lengths = %#v", p.Cleaning.CardLengths)
	}
	if p.Storage.Kind != "sqlite" || p.Storage.BatchSize != 500 || p.AWS.Region != "eu-west-1" {
		t.Fatalf("storage=%#v aws=%#v", p.Storage, p.AWS)
	}
	if p.Runtime.Retry.Attempts != 5 {
		t.Fatalf("runtime = %#v", p.Runtime)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipeline.json")
	if err := os.WriteFile(path, []byte(`{"job":"x","sorces":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "sorces") {
		t.Fatalf("Load() error = %v, want unknown field error", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("Load() of missing file returned nil error")
	}
}

func TestLoad_DecodesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pipeline.json")
	if err := os.WriteFile(path, []byte(samplePipeline), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if len(p.Entities) != 3 {
		t.Fatalf("entities = %d, want 3", len(p.Entities))
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"RETAILDC_STORAGE_KIND":       "postgres",
		"RETAILDC_STORAGE_DSN":        "postgres://wh",
		"RETAILDC_STORAGE_BATCH_SIZE": "250",
		"RETAILDC_API_KEY":            "secret",
		"RETAILDC_RELATIONAL_DSN":     "",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	p := Pipeline{Storage: Storage{Kind: "sqlite"}, Sources: Sources{Relational: Relational{DSN: "keep"}}}
	if err := p.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv(): %v", err)
	}
	if p.Storage.Kind != "postgres" || p.Storage.DSN != "postgres://wh" || p.Storage.BatchSize != 250 {
		t.Fatalf("storage = %#v", p.Storage)
	}
	if p.Sources.API.Key != "secret" {
		t.Fatalf("api key = %q, want secret", p.Sources.API.Key)
	}
	// An empty variable does not clear the file value.
	if p.Sources.Relational.DSN != "keep" {
		t.Fatalf("relational dsn = %q, want keep", p.Sources.Relational.DSN)
	}

	env["RETAILDC_API_WORKERS"] = "many"
	if err := p.ApplyEnv(lookup); err == nil {
		t.Fatal("ApplyEnv() accepted a non-numeric worker count")
	}
}

func TestPipeline_Only(t *testing.T) {
	t.Parallel()

	p := Pipeline{Entities: []Entity{{Name: "users"}, {Name: "orders"}, {Name: "products"}}}
	got := p.Only([]string{"products", " users"})
	if len(got.Entities) != 2 || got.Entities[0].Name != "users" || got.Entities[1].Name != "products" {
		t.Fatalf("Only() = %#v, want users then products", got.Entities)
	}
	if len(p.Only(nil).Entities) != 3 {
		t.Fatal("Only(nil) dropped entities")
	}
	if len(p.Entities) != 3 {
		t.Fatal("Only() mutated the receiver")
	}
}

func TestRetry_Policy(t *testing.T) {
	t.Parallel()

	if got := (Retry{}).Policy(); got.Attempts != retry.Default.Attempts || got.Max != retry.Default.Max {
		t.Fatalf("zero Retry.Policy() = %#v, want defaults", got)
	}
	got := Retry{Attempts: 5, InitialMillis: 50, MaxMillis: 1000}.Policy()
	if got.Attempts != 5 || got.Initial != 50*time.Millisecond || got.Max != time.Second {
		t.Fatalf("Policy() = %#v", got)
	}
}

func TestAPI_KeyAndHeader(t *testing.T) {
	t.Setenv("RETAILDC_TEST_API_KEY", "from-env")

	a := API{KeyEnv: "RETAILDC_TEST_API_KEY"}
	if a.ResolveKey() != "from-env" || a.HeaderOrDefault() != DefaultAPIKeyHeader {
		t.Fatalf("key=%q header=%q", a.ResolveKey(), a.HeaderOrDefault())
	}
	a.Key, a.Header = "inline", "X-Key"
	if a.ResolveKey() != "inline" || a.HeaderOrDefault() != "X-Key" {
		t.Fatalf("key=%q header=%q", a.ResolveKey(), a.HeaderOrDefault())
	}
}

// -----------------------------------------------------------------------------
// Options helper tests (hermetic).
// -----------------------------------------------------------------------------
//
// Parser settings are read through these helpers, so their coercion rules and
// defaults are pinned here.

func TestOptions_String_Bool_Int_Rune_DefaultsAndCoercion(t *testing.T) {
	t.Parallel()

	o := Options{
		"s": "hello",
		"b": true,
		"i": float64(42), // encoding/json decodes numbers as float64
		"r": ",",         // first rune will be used
	}

	// String
	if got := o.String("s", "def"); got != "hello" {
		t.Fatalf("String(s) = %q, want hello", got)
	}
	if got := o.String("missing", "def"); got != "def" {
		t.Fatalf("String(missing) = %q, want def", got)
	}

	// Bool
	if got := o.Bool("b", false); got != true {
		t.Fatalf("Bool(b) = %v, want true", got)
	}
	if got := o.Bool("missing", true); got != true {
		t.Fatalf("Bool(missing) = %v, want true", got)
	}

	// Int (float64 → int)
	if got := o.Int("i", 0); got != 42 {
		t.Fatalf("Int(i) = %d, want 42", got)
	}
	if got := o.Int("missing", 7); got != 7 {
		t.Fatalf("Int(missing) = %d, want 7", got)
	}

	// Rune (first rune from string)
	if got := o.Rune("r", ';'); got != ',' {
		t.Fatalf("Rune(r) = %q, want ','", got)
	}
	if got := o.Rune("missing", 'X'); got != 'X' {
		t.Fatalf("Rune(missing) = %q, want 'X'", got)
	}

	// Validate that Rune picks the FIRST rune (not byte) for multi-byte char.
	o["r2"] = "ø" // multi-byte UTF-8 rune
	r := o.Rune("r2", 'x')
	if r == 0 || !utf8.ValidRune(r) {
		t.Fatalf("Rune(r2) = %#U, want valid rune", r)
	}
	if string(r) != "ø" {
		t.Fatalf("Rune(r2) = %#U (%q), want ø", r, string(r))
	}
}

func TestOptions_StringMap_StringSlice_Any(t *testing.T) {
	t.Parallel()

	o := Options{
		"m": map[string]any{"A": "a", "B": "b", "X": 1}, // non-string value "X" must be ignored
		"s1": []any{
			"alpha", "beta", 3, // ints ignored
		},
		"s2": []string{"gamma", "delta"},
		"nested": map[string]any{
			"k": "v",
		},
	}

	// StringMap should include only string values and skip non-strings.
	sm := o.StringMap("m")
	if !reflect.DeepEqual(sm, map[string]string{"A": "a", "B": "b"}) {
		t.Fatalf("StringMap(m) = %#v, want {A:a B:b}", sm)
	}
	// Missing key → empty map (not nil).
	sm2 := o.StringMap("missing")
	if sm2 == nil || len(sm2) != 0 {
		t.Fatalf("StringMap(missing) = %#v, want empty map", sm2)
	}

	// StringSlice supports []any with strings and filters non-strings.
	ss1 := o.StringSlice("s1")
	if !reflect.DeepEqual(ss1, []string{"alpha", "beta"}) {
		t.Fatalf("StringSlice(s1) = %#v, want [alpha beta]", ss1)
	}
	// And the native []string case.
	ss2 := o.StringSlice("s2")
	if !reflect.DeepEqual(ss2, []string{"gamma", "delta"}) {
		t.Fatalf("StringSlice(s2) = %#v, want [gamma delta]", ss2)
	}
	// Missing key → nil (intentional to distinguish unspecified from empty).
	if got := o.StringSlice("missing"); got != nil {
		t.Fatalf("StringSlice(missing) = %#v, want nil", got)
	}

	// Any returns raw nested values for callers to unmarshal later.
	anyv := o.Any("nested")
	m, ok := anyv.(map[string]any)
	if !ok || m["k"] != "v" {
		t.Fatalf("Any(nested) = %#v, want map with k=v", anyv)
	}
	if o.Any("missing") != nil {
		t.Fatalf("Any(missing) should be nil when key absent")
	}
}

// -----------------------------------------------------------------------------
// Options.UnmarshalJSON behavior tests
// -----------------------------------------------------------------------------
//
// An explicit null decodes to a non-nil, empty map.

func TestOptions_UnmarshalJSON_NullYieldsEmptyMap(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Opts Options `json:"options"`
	}

	// options is explicitly null → non-nil, empty Options.
	const jsNull = `{"options": null}`
	var w wrapper
	if err := json.Unmarshal([]byte(jsNull), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Opts == nil || len(w.Opts) != 0 {
		t.Fatalf("Opts after null unmarshal = %#v, want non-nil empty map", w.Opts)
	}
}

func TestOptions_UnmarshalJSON_ObjectDecodesAsMap(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Opts Options `json:"options"`
	}

	const jsObj = `{"options": {"a":"x","b":true,"n": 3}}`
	var w wrapper
	if err := json.Unmarshal([]byte(jsObj), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if w.Opts.String("a", "") != "x" {
		t.Fatalf("Opts.String(a) = %q, want x", w.Opts.String("a", ""))
	}
	if w.Opts.Bool("b", false) != true {
		t.Fatalf("Opts.Bool(b) = %v, want true", w.Opts.Bool("b", false))
	}
	if w.Opts.Int("n", 0) != 3 {
		t.Fatalf("Opts.Int(n) = %d, want 3", w.Opts.Int("n", 0))
	}
}
