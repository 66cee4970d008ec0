// Package config defines the JSON-serializable configuration model for the
// retail ETL. A pipeline file names the entities to process, where each one
// is extracted from, how the adapters connect, and which warehouse backend
// receives the cleaned tables.
//
// Example (trimmed):
//
//	{
//	  "job": "retaildc",
//	  "sources": {
//	    "relational": { "dialect": "postgres", "credentials": { "kind": "yaml", "path": "db_creds.yaml" } },
//	    "api": { "key_env": "RETAIL_API_KEY" }
//	  },
//	  "entities": [
//	    { "name": "users", "source": { "kind": "relational", "table_match": "user" } },
//	    { "name": "products", "source": { "kind": "objectstore", "address": "s3://bucket/products.csv" } }
//	  ],
//	  "storage": { "kind": "postgres", "dsn": "postgresql://..." }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"retaildc/internal/datasource"
	"retaildc/internal/retry"
)

// EnvPrefix prefixes every environment override read by ApplyEnv.
const EnvPrefix = "RETAILDC_"

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job labels metrics and log lines of a run.
	Job string `json:"job"`

	// Sources holds the connection settings shared by all entities of a
	// source kind.
	Sources Sources `json:"sources"`

	// Entities lists the entities to process, in run order.
	Entities []Entity `json:"entities"`

	Cleaning Cleaning      `json:"cleaning"`
	Storage  Storage       `json:"storage"`
	AWS      AWS           `json:"aws"`
	Runtime  RuntimeConfig `json:"runtime"`
}

// Entity binds a canonical entity to the source it is extracted from.
type Entity struct {
	// Name is a canonical entity name (see schema.Names).
	Name string `json:"name"`

	// Table overrides the entity's default warehouse table.
	Table string `json:"table"`

	Source datasource.Descriptor `json:"source"`
}

// Sources carries per-adapter settings.
type Sources struct {
	Relational  Relational  `json:"relational"`
	API         API         `json:"api"`
	Document    Document    `json:"document"`
	ObjectStore ObjectStore `json:"object_store"`
}

// Relational configures the source database.
type Relational struct {
	// Dialect is "postgres", "mysql" or "sqlite".
	Dialect string `json:"dialect"`

	// DSN, when set, is used as-is. Otherwise Credentials are loaded and
	// rendered for Dialect.
	DSN         string           `json:"dsn"`
	Credentials CredentialSource `json:"credentials"`
}

// API configures the paginated HTTP store API.
type API struct {
	// Key is the API key. KeyEnv names an environment variable holding it
	// and is consulted when Key is empty.
	Key    string `json:"key"`
	KeyEnv string `json:"key_env"`

	// Header carries the key. Defaults to "x-api-key".
	Header string `json:"header"`

	Workers            int  `json:"workers"`
	TimeoutSeconds     int  `json:"timeout_seconds"`
	InsecureSkipVerify bool `json:"insecure_skip_verify"`

	// MaxItems caps the item count a count endpoint may report. Zero means
	// the adapter default.
	MaxItems int `json:"max_items"`
}

// DefaultAPIKeyHeader is used when API.Header is empty.
const DefaultAPIKeyHeader = "x-api-key"

// ResolveKey returns the configured API key, reading KeyEnv when Key is
// empty.
func (a API) ResolveKey() string {
	if a.Key != "" {
		return a.Key
	}
	if a.KeyEnv != "" {
		return os.Getenv(a.KeyEnv)
	}
	return ""
}

// HeaderOrDefault returns Header or DefaultAPIKeyHeader.
func (a API) HeaderOrDefault() string {
	if a.Header == "" {
		return DefaultAPIKeyHeader
	}
	return a.Header
}

// Timeout returns the per-request timeout, zero meaning the client default.
func (a API) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Document configures the table extractor used for documents.
type Document struct {
	// Command is the tabula argv prefix, e.g. ["java", "-jar", "tabula.jar"].
	Command []string `json:"command"`
}

// ObjectStore configures object-store payload parsing.
type ObjectStore struct {
	// Parsers maps a file extension (".csv", ".json") to parser options.
	// For CSV, typical keys include:
	//   comma (string), trim_space (bool), header_map (object)
	Parsers map[string]Options `json:"parsers"`
}

// Cleaning tunes the cleaning pipeline.
type Cleaning struct {
	// CardLengths lists the accepted card number lengths. Defaults to [16].
	CardLengths []int `json:"card_lengths"`

	// DateLayouts replaces the default date layout allowlist when set.
	DateLayouts []string `json:"date_layouts"`

	// NullTokens replaces the default null token list when set.
	NullTokens []string `json:"null_tokens"`
}

// Storage selects the warehouse backend.
type Storage struct {
	// Kind is a registered storage kind (see storage.ListKinds).
	Kind string `json:"kind"`

	// DSN is the backend connection string. When empty, Credentials are
	// loaded and rendered for Kind.
	DSN         string           `json:"dsn"`
	Credentials CredentialSource `json:"credentials"`

	// Database names the target database for backends that need it (mongo).
	Database  string `json:"database"`
	BatchSize int    `json:"batch_size"`
}

// AWS carries the settings used to build AWS service clients.
type AWS struct {
	Region string `json:"region"`

	// AccessKeyID and SecretAccessKey select static credentials. When either
	// is empty the default credential chain is used.
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// RuntimeConfig controls retries.
type RuntimeConfig struct {
	Retry Retry `json:"retry"`
}

// Retry configures the connectivity retry policy.
type Retry struct {
	Attempts      int `json:"attempts"`
	InitialMillis int `json:"initial_ms"`
	MaxMillis     int `json:"max_ms"`
}

// Policy converts r into a retry.Policy. Zero fields keep retry.Default
// values.
func (r Retry) Policy() retry.Policy {
	p := retry.Default
	if r.Attempts > 0 {
		p.Attempts = r.Attempts
	}
	if r.InitialMillis > 0 {
		p.Initial = time.Duration(r.InitialMillis) * time.Millisecond
	}
	if r.MaxMillis > 0 {
		p.Max = time.Duration(r.MaxMillis) * time.Millisecond
	}
	return p
}

// Load reads and decodes the pipeline file at path and applies environment
// overrides from the process environment.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var p Pipeline
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := p.ApplyEnv(os.LookupEnv); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

// ApplyEnv overrides pipeline fields from RETAILDC_* variables:
//
//	RETAILDC_JOB, RETAILDC_STORAGE_KIND, RETAILDC_STORAGE_DSN,
//	RETAILDC_STORAGE_DATABASE, RETAILDC_STORAGE_BATCH_SIZE,
//	RETAILDC_RELATIONAL_DSN, RETAILDC_API_KEY, RETAILDC_API_WORKERS,
//	RETAILDC_AWS_REGION
func (p *Pipeline) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s%s=%q: %w", EnvPrefix, key, v, err)
		}
		*dst = n
		return nil
	}

	str("JOB", &p.Job)
	str("STORAGE_KIND", &p.Storage.Kind)
	str("STORAGE_DSN", &p.Storage.DSN)
	str("STORAGE_DATABASE", &p.Storage.Database)
	str("RELATIONAL_DSN", &p.Sources.Relational.DSN)
	str("API_KEY", &p.Sources.API.Key)
	str("AWS_REGION", &p.AWS.Region)
	if err := num("STORAGE_BATCH_SIZE", &p.Storage.BatchSize); err != nil {
		return err
	}
	return num("API_WORKERS", &p.Sources.API.Workers)
}

// Only keeps the entities whose names are listed, preserving file order.
// An empty names list keeps everything.
func (p Pipeline) Only(names []string) Pipeline {
	if len(names) == 0 {
		return p
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}
	out := p
	out.Entities = nil
	for _, e := range p.Entities {
		if want[e.Name] {
			out.Entities = append(out.Entities, e)
		}
	}
	return out
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns the provided default
// when a key is absent or of an unexpected type.
//
// Options is used for parser settings whose shape varies by implementation.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers are decoded as
// float64 by encoding/json, so float64 is accepted and truncated.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object.
// Non-string values are ignored. Returns an empty map when the key is missing
// or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of
// strings. Returns nil when the key is missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	if v, ok := o[key]; ok {
		switch vv := v.(type) {
		case []any:
			out := make([]string, 0, len(vv))
			for _, x := range vv {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
			return out
		case []string:
			return vv
		}
	}
	return nil
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON decodes a missing or null object into an empty, non-nil
// Options map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
