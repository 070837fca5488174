package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"jobsync/internal/events"
	"jobsync/internal/fingerprint"
	"jobsync/internal/model"
	"jobsync/internal/source"
	"jobsync/internal/store"
)

// ErrCycleRunning is returned when a cycle is triggered while another one
// holds the RUNNING state. The trigger is dropped, not queued.
var ErrCycleRunning = errors.New("cycle already running")

// Config holds the cycle tuning knobs.
type Config struct {
	BatchSize      int
	BatchPause     time.Duration
	AdapterTimeout time.Duration
	Interval       time.Duration // next_fetch = start + Interval
}

// DefaultConfig is two adapters per batch, three seconds apart, twenty
// seconds per adapter, hourly cycles.
func DefaultConfig() Config {
	return Config{
		BatchSize:      2,
		BatchPause:     3 * time.Second,
		AdapterTimeout: 20 * time.Second,
		Interval:       time.Hour,
	}
}

// CycleReport summarises one completed cycle.
type CycleReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Reset      int64
	Results    []model.SourceResult
	TotalFound int
	TotalNew   int
}

// Orchestrator owns the cycle state and is the only writer of postings,
// scrape logs and CycleState.
type Orchestrator struct {
	store  store.Store
	reg    *source.Registry
	cfg    Config
	hash   fingerprint.Func
	events events.Publisher
	now    func() time.Time
	log    *slog.Logger

	state atomic.Int32
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithHasher swaps the identity function.
func WithHasher(f fingerprint.Func) Option { return func(o *Orchestrator) { o.hash = f } }

// WithPublisher sets where cycle events go.
func WithPublisher(p events.Publisher) Option { return func(o *Orchestrator) { o.events = p } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// New constructs an Orchestrator. Zero-valued Config fields take defaults.
func New(st store.Store, reg *source.Registry, cfg Config, opts ...Option) *Orchestrator {
	def := DefaultConfig()
	if cfg.BatchSize < 1 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = def.AdapterTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	o := &Orchestrator{
		store:  st,
		reg:    reg,
		cfg:    cfg,
		hash:   fingerprint.Of,
		events: events.Nop{},
		now:    time.Now,
		log:    slog.With("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State reports whether a cycle is in flight.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

// RunCycle executes one full refresh. A store failure aborts the cycle and
// leaves CycleState untouched; adapter failures only mark their own result.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrCycleRunning
	}
	defer o.state.Store(int32(StateIdle))

	start := o.now()
	o.log.Info("cycle started", "adapters", len(o.reg.Adapters()))

	reset, err := o.store.ResetFreshness(ctx)
	if err != nil {
		return nil, fmt.Errorf("reset freshness: %w", err)
	}

	report := &CycleReport{StartedAt: start, Reset: reset}
	adapters := o.reg.Adapters()

	for i := 0; i < len(adapters); i += o.cfg.BatchSize {
		if i > 0 && o.cfg.BatchPause > 0 {
			if err := sleep(ctx, o.cfg.BatchPause); err != nil {
				return nil, fmt.Errorf("cycle interrupted: %w", err)
			}
		}
		end := i + o.cfg.BatchSize
		if end > len(adapters) {
			end = len(adapters)
		}

		for _, f := range o.fetchBatch(ctx, adapters[i:end]) {
			res, err := o.ingest(ctx, f)
			if err != nil {
				o.log.Error("cycle aborted", "source", f.source, "err", err)
				return nil, err
			}
			report.Results = append(report.Results, res)
			report.TotalFound += res.Found
			report.TotalNew += res.New
		}
	}

	next := start.Add(o.cfg.Interval)
	st := model.CycleState{LastFetch: &start, NextFetch: &next, LastResults: report.Results}
	if err := store.SaveCycleState(ctx, o.store, st); err != nil {
		return nil, fmt.Errorf("save cycle state: %w", err)
	}
	report.FinishedAt = o.now()

	o.log.Info("cycle complete",
		"found", report.TotalFound, "new", report.TotalNew,
		"duration", report.FinishedAt.Sub(start).Round(time.Millisecond))

	o.events.Publish(ctx, events.CycleCompleted, map[string]any{
		"found":     report.TotalFound,
		"new":       report.TotalNew,
		"nextFetch": next.UTC().Format(time.RFC3339),
	})
	return report, nil
}

type fetchOutcome struct {
	source   model.Source
	postings []model.RawPosting
	err      error
}

// fetchBatch runs every adapter in batch concurrently and returns outcomes
// in batch order.
func (o *Orchestrator) fetchBatch(ctx context.Context, batch []source.Adapter) []fetchOutcome {
	out := make([]fetchOutcome, len(batch))
	var wg sync.WaitGroup
	for i, a := range batch {
		wg.Add(1)
		go func(i int, a source.Adapter) {
			defer wg.Done()
			postings, err := o.fetchOne(ctx, a)
			out[i] = fetchOutcome{source: a.Name(), postings: postings, err: err}
		}(i, a)
	}
	wg.Wait()
	return out
}

// fetchOne bounds a single adapter call by AdapterTimeout, even if the
// adapter ignores its context, and converts a panic into an error.
func (o *Orchestrator) fetchOne(ctx context.Context, a source.Adapter) ([]model.RawPosting, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.AdapterTimeout)
	defer cancel()

	type result struct {
		postings []model.RawPosting
		err      error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		p, err := a.Fetch(ctx)
		ch <- result{postings: p, err: err}
	}()

	select {
	case r := <-ch:
		return r.postings, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("adapter timed out after %s: %w", o.cfg.AdapterTimeout, ctx.Err())
	}
}

// ingest inserts one adapter's postings and appends its scrape log entry.
// Only store errors are returned.
func (o *Orchestrator) ingest(ctx context.Context, f fetchOutcome) (model.SourceResult, error) {
	now := o.now()
	res := model.SourceResult{Source: f.source}

	if f.err != nil {
		msg := f.err.Error()
		res.Error = msg
		o.log.Warn("adapter failed", "source", f.source, "err", f.err)
		if err := o.store.AppendLog(ctx, model.ScrapeLogEntry{
			Source:    f.source,
			Status:    model.LogStatusError,
			Error:     &msg,
			ScrapedAt: now,
		}); err != nil {
			return res, fmt.Errorf("append log: %w", err)
		}
		return res, nil
	}

	for i := range f.postings {
		p := o.toPosting(f.source, &f.postings[i], now)
		inserted, err := o.store.InsertIfAbsent(ctx, p)
		if err != nil {
			return res, fmt.Errorf("insert %s posting: %w", f.source, err)
		}
		if inserted {
			res.New++
		}
	}
	res.Found = len(f.postings)
	res.Success = true

	o.log.Info("adapter done", "source", f.source, "found", res.Found, "new", res.New)
	if err := o.store.AppendLog(ctx, model.ScrapeLogEntry{
		Source:    f.source,
		Status:    model.LogStatusSuccess,
		JobsFound: res.Found,
		JobsNew:   res.New,
		ScrapedAt: now,
	}); err != nil {
		return res, fmt.Errorf("append log: %w", err)
	}
	return res, nil
}

func (o *Orchestrator) toPosting(src model.Source, raw *model.RawPosting, now time.Time) *model.Posting {
	posted := now
	if raw.PostedAt != nil && !raw.PostedAt.IsZero() {
		posted = *raw.PostedAt
	}
	return &model.Posting{
		ID:          uuid.NewString(),
		Fingerprint: o.hash(string(src), raw.Title, raw.Company, raw.Location),
		Title:       raw.Title,
		Company:     raw.Company,
		Location:    raw.Location,
		Experience:  raw.Experience,
		Salary:      raw.Salary,
		Description: raw.Description,
		Skills:      raw.Skills,
		Source:      src,
		SourceURL:   raw.SourceURL,
		ApplyURL:    raw.ApplyURL,
		PostedAt:    posted,
		FetchedAt:   now,
		IsRemote:    raw.IsRemote,
		IsNew:       true,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
