// Package etl sequences extraction, cleaning and loading for each configured
// entity. Entities run one after another; a failed entity is recorded and the
// run moves on to the next one.
package etl

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"retaildc/internal/cleaning"
	"retaildc/internal/datasource"
	"retaildc/internal/metrics"
	"retaildc/internal/schema"
	"retaildc/internal/storage"
	"retaildc/pkg/records"
)

// State is the position of one entity in its pipeline.
type State int

const (
	Pending State = iota
	Extracting
	Cleaning
	Loading
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Extracting:
		return "extracting"
	case Cleaning:
		return "cleaning"
	case Loading:
		return "loading"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// stageName is the metrics label of a working state.
func stageName(s State) string {
	switch s {
	case Extracting:
		return "extract"
	case Cleaning:
		return "clean"
	case Loading:
		return "load"
	}
	return s.String()
}

// StageError is the cause of a Failed entity together with the working
// state it failed in.
type StageError struct {
	Entity string
	Stage  State
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Entity, stageName(e.Stage), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Job is one entity to process.
type Job struct {
	Entity schema.Entity

	// Table overrides Entity.Table when set.
	Table  string
	Source datasource.Descriptor
}

// TargetTable returns the warehouse table the job writes.
func (j Job) TargetTable() string {
	if j.Table != "" {
		return j.Table
	}
	return j.Entity.Table
}

// Cleaner is satisfied by *cleaning.Cleaner.
type Cleaner interface {
	Clean(e schema.Entity, raw records.Batch) (schema.Batch, cleaning.Report)
}

// OpenFunc acquires a warehouse repository. The orchestrator closes it before
// the next entity starts.
type OpenFunc func(ctx context.Context) (storage.Repository, error)

// Result is the outcome of one entity run.
type Result struct {
	Entity string
	Table  string

	// State is Done or Failed. Stage is the working state a failed entity
	// stopped in.
	State State
	Stage State
	Err   error

	Extracted     int
	ExtractFailed int
	Report        cleaning.Report
	Loaded        int64

	// Empty flags a batch that cleaned down to zero rows. The (empty) table
	// is still loaded.
	Empty bool

	Durations map[State]time.Duration
}

// OK reports whether the entity reached Done.
func (r Result) OK() bool { return r.State == Done }

// Summary is the outcome of one Run.
type Summary struct {
	RunID   string
	Results []Result
	Elapsed time.Duration
}

// Failed returns the results that did not reach Done.
func (s Summary) Failed() []Result {
	var out []Result
	for _, r := range s.Results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Err joins the errors of all failed entities, or returns nil.
func (s Summary) Err() error {
	var errs []error
	for _, r := range s.Failed() {
		errs = append(errs, r.Err)
	}
	return errors.Join(errs...)
}

// Orchestrator runs jobs through an extractor, a cleaner and a warehouse.
type Orchestrator struct {
	Extractor datasource.Extractor
	Cleaner   Cleaner
	Open      OpenFunc

	// OnTransition, when set, observes every state change.
	OnTransition func(entity string, from, to State)

	now func() time.Time
}

// New returns an Orchestrator.
func New(x datasource.Extractor, c Cleaner, open OpenFunc) *Orchestrator {
	return &Orchestrator{Extractor: x, Cleaner: c, Open: open, now: time.Now}
}

// Run processes jobs in order under a fresh run ID. It never stops early on
// an entity failure; a canceled ctx fails the remaining entities.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) Summary {
	s := Summary{RunID: uuid.NewString()}
	start := o.clock()
	log.Printf("etl: run=%s starting entities=%d", s.RunID, len(jobs))

	for _, j := range jobs {
		r := o.RunEntity(ctx, j)
		if r.OK() {
			log.Printf("etl: run=%s entity=%s state=done table=%s loaded=%d empty=%t",
				s.RunID, r.Entity, r.Table, r.Loaded, r.Empty)
		} else {
			log.Printf("etl: run=%s entity=%s state=failed stage=%s err=%v",
				s.RunID, r.Entity, stageName(r.Stage), r.Err)
		}
		s.Results = append(s.Results, r)
	}

	s.Elapsed = o.clock().Sub(start)
	log.Printf("etl: run=%s finished entities=%d failed=%d elapsed=%s",
		s.RunID, len(s.Results), len(s.Failed()), s.Elapsed.Truncate(time.Millisecond))
	return s
}

// RunEntity drives one job from Pending to Done or Failed.
func (o *Orchestrator) RunEntity(ctx context.Context, j Job) Result {
	name := j.Entity.Name
	r := Result{
		Entity:    name,
		Table:     j.TargetTable(),
		State:     Pending,
		Durations: map[State]time.Duration{},
	}

	fail := func(stage State, err error) Result {
		o.transition(&r, Failed)
		r.Stage = stage
		r.Err = &StageError{Entity: name, Stage: stage, Err: err}
		metrics.RecordEntity(name, "failed_"+stageName(stage))
		return r
	}

	// Extracting
	o.transition(&r, Extracting)
	if err := ctx.Err(); err != nil {
		return fail(Extracting, err)
	}
	var raw records.Batch
	err := o.timed(&r, Extracting, func() error {
		var err error
		raw, err = o.Extractor.Extract(ctx, j.Source)
		return err
	})
	if err != nil {
		return fail(Extracting, err)
	}
	r.Extracted, r.ExtractFailed = raw.Len(), raw.Failed
	metrics.RecordRows(name, "extracted", int64(raw.Len()))
	metrics.RecordRows(name, "extract_failed", int64(raw.Failed))
	if raw.Failed > 0 {
		log.Printf("etl: entity=%s source=%s skipped_items=%d", name, j.Source, raw.Failed)
	}

	// Cleaning
	o.transition(&r, Cleaning)
	var batch schema.Batch
	_ = o.timed(&r, Cleaning, func() error {
		batch, r.Report = o.Cleaner.Clean(j.Entity, raw)
		return nil
	})
	r.Report.Log()
	recordReport(name, r.Report)
	if batch.Len() == 0 {
		r.Empty = true
		log.Printf("etl: WARNING entity=%s cleaned batch is empty (rows_in=%d); table %s will be emptied",
			name, r.Report.RowsIn, r.Table)
	}

	// Loading
	o.transition(&r, Loading)
	err = o.timed(&r, Loading, func() error {
		n, err := o.load(ctx, batch, r.Table)
		r.Loaded = n
		return err
	})
	if err != nil {
		return fail(Loading, err)
	}
	metrics.RecordRows(name, "loaded", r.Loaded)

	o.transition(&r, Done)
	metrics.RecordEntity(name, "done")
	return r
}

// load opens the warehouse, replaces the table and closes the repository
// before returning.
func (o *Orchestrator) load(ctx context.Context, b schema.Batch, table string) (int64, error) {
	repo, err := o.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("open warehouse: %w", err)
	}
	defer repo.Close()
	return storage.Load(ctx, repo, b, table)
}

func (o *Orchestrator) timed(r *Result, s State, fn func() error) error {
	start := o.clock()
	err := fn()
	d := o.clock().Sub(start)
	r.Durations[s] = d
	metrics.RecordStage(r.Entity, stageName(s), err, d)
	return err
}

func (o *Orchestrator) transition(r *Result, to State) {
	from := r.State
	r.State = to
	if o.OnTransition != nil {
		o.OnTransition(r.Entity, from, to)
	}
}

func (o *Orchestrator) clock() time.Time {
	if o.now == nil {
		return time.Now()
	}
	return o.now()
}

func recordReport(entity string, rep cleaning.Report) {
	metrics.RecordRows(entity, "dropped_required", int64(rep.DroppedRequired))
	metrics.RecordRows(entity, "dropped_validation", int64(rep.DroppedValidation))
	metrics.RecordRows(entity, "dropped_coerce", int64(rep.DroppedCoercion))
	metrics.RecordRows(entity, "dropped_normalize", int64(rep.DroppedNormalization))
	metrics.RecordRows(entity, "dropped_duplicate", int64(rep.DroppedDuplicate))
	metrics.RecordRows(entity, "malformed_dates", int64(rep.MalformedDates))
	for v, n := range rep.Rejections {
		metrics.RecordRejections(entity, v, int64(n))
	}
}
