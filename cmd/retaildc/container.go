// Package main wires the retail ETL end-to-end. This file builds the
// adapters, the cleaner and the warehouse opener from a decoded pipeline;
// it never imports database drivers directly.
package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"retaildc/internal/cleaning"
	"retaildc/internal/config"
	"retaildc/internal/datasource"
	"retaildc/internal/datasource/document"
	"retaildc/internal/datasource/httpds"
	"retaildc/internal/datasource/objectstore"
	"retaildc/internal/datasource/relational"
	"retaildc/internal/etl"
	csvparser "retaildc/internal/parser/csv"
	jsonparser "retaildc/internal/parser/json"
	"retaildc/internal/schema"
	"retaildc/internal/storage"
	"retaildc/internal/validator"
)

// Function variables used to introduce test seams.
// In production these point to real implementations; tests can override them.
var (
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return storage.New(ctx, cfg)
	}

	newS3APIFn = func(ctx context.Context, a config.AWS) (objectstore.S3API, error) {
		c, err := a.S3Client(ctx)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	newSSMFn = func(ctx context.Context, a config.AWS) func() (config.SSMAPI, error) {
		return a.SSMFactory(ctx)
	}
)

// container holds everything one run needs.
type container struct {
	jobs         []etl.Job
	orchestrator *etl.Orchestrator
}

// buildContainer resolves credentials and constructs only the adapters the
// configured entities use.
func buildContainer(ctx context.Context, p config.Pipeline) (*container, error) {
	jobs, err := buildJobs(p)
	if err != nil {
		return nil, err
	}
	set, err := buildExtractors(ctx, p, usedKinds(jobs))
	if err != nil {
		return nil, err
	}

	st := p.Storage
	dsn, err := config.ResolveDSN(ctx, st.DSN, st.Kind, st.Credentials, newSSMFn(ctx, p.AWS))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	scfg := storage.Config{Kind: st.Kind, DSN: dsn, Database: st.Database, BatchSize: st.BatchSize}
	open := func(ctx context.Context) (storage.Repository, error) {
		return newRepositoryFn(ctx, scfg)
	}

	return &container{
		jobs:         jobs,
		orchestrator: etl.New(set, newCleaner(p.Cleaning), open),
	}, nil
}

func (c *container) run(ctx context.Context) etl.Summary {
	return c.orchestrator.Run(ctx, c.jobs)
}

func buildJobs(p config.Pipeline) ([]etl.Job, error) {
	jobs := make([]etl.Job, 0, len(p.Entities))
	for _, e := range p.Entities {
		ent, err := schema.Lookup(e.Name)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, etl.Job{Entity: ent, Table: e.Table, Source: e.Source})
	}
	return jobs, nil
}

func usedKinds(jobs []etl.Job) map[datasource.Kind]bool {
	used := map[datasource.Kind]bool{}
	for _, j := range jobs {
		used[j.Source.Kind] = true
	}
	return used
}

func newHTTPClient(p config.Pipeline) *httpds.Client {
	pol := p.Runtime.Retry.Policy()
	api := p.Sources.API
	return httpds.NewClient(httpds.Config{
		Timeout:            api.Timeout(),
		MaxRetries:         pol.Attempts - 1,
		InitialBackoff:     pol.Initial,
		MaxBackoff:         pol.Max,
		InsecureSkipVerify: api.InsecureSkipVerify,
		APIKeyHeader:       api.HeaderOrDefault(),
		APIKey:             api.ResolveKey(),
	})
}

func buildExtractors(ctx context.Context, p config.Pipeline, used map[datasource.Kind]bool) (datasource.Set, error) {
	set := datasource.Set{}
	client := newHTTPClient(p)

	if used[datasource.KindRelational] {
		rel := p.Sources.Relational
		dsn, err := config.ResolveDSN(ctx, rel.DSN, rel.Dialect, rel.Credentials, newSSMFn(ctx, p.AWS))
		if err != nil {
			return nil, fmt.Errorf("relational: %w", err)
		}
		src, err := relational.New(rel.Dialect, dsn, p.Runtime.Retry.Policy())
		if err != nil {
			return nil, err
		}
		set[datasource.KindRelational] = src
	}

	if used[datasource.KindAPI] {
		set[datasource.KindAPI] = httpds.NewAPI(client, p.Sources.API.Workers).WithMaxItems(p.Sources.API.MaxItems)
	}

	if used[datasource.KindDocument] {
		set[datasource.KindDocument] = document.New(document.NewTabula(p.Sources.Document.Command, client))
	}

	if used[datasource.KindObjectStore] {
		fetchers := map[string]objectstore.Fetcher{
			objectstore.SchemeHTTPS: objectstore.HTTPFetcher{Client: client},
			objectstore.SchemeFile:  objectstore.LocalFetcher{},
		}
		if needsS3(p) {
			s3c, err := newS3APIFn(ctx, p.AWS)
			if err != nil {
				return nil, fmt.Errorf("objectstore: %w", err)
			}
			fetchers[objectstore.SchemeS3] = objectstore.S3Fetcher{Client: s3c}
		}
		store := objectstore.New(fetchers)
		for ext, opts := range p.Sources.ObjectStore.Parsers {
			switch strings.ToLower(ext) {
			case ".csv":
				store.WithParser(ext, csvparser.NewParser(csvparser.FromConfigOptions(opts)))
			case ".json":
				store.WithParser(ext, jsonparser.NewParser(jsonparser.FromConfigOptions(opts)))
			default:
				log.Printf("objectstore: no parser for extension %q; options ignored", ext)
			}
		}
		set[datasource.KindObjectStore] = store
	}

	return set, nil
}

// needsS3 reports whether any object-store entity addresses S3.
func needsS3(p config.Pipeline) bool {
	for _, e := range p.Entities {
		if e.Source.Kind != datasource.KindObjectStore {
			continue
		}
		a, err := objectstore.ParseAddress(e.Source.Address)
		if err == nil && a.Scheme == objectstore.SchemeS3 {
			return true
		}
	}
	return false
}

func newCleaner(c config.Cleaning) *cleaning.Cleaner {
	return cleaning.New(cleaning.Options{
		Validators: validator.Set{
			Card: validator.CardNumber{Lengths: c.CardLengths},
			Date: validator.Date{Layouts: c.DateLayouts},
		},
		NullTokens: c.NullTokens,
	})
}
