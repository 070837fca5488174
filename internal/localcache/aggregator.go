// Package localcache is the serverless variant of the aggregator: adapters
// run on demand when a local cache expires, and every read re-derives
// applied state, stats, the recency window and ordering from that cache.
//
// Ids are regenerated on every refresh, so applied marks are keyed by
// fingerprint and follow a posting across refreshes. Marks are resolved
// against the cached set without refreshing it, so an id just listed can
// always be marked.
package localcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jobsync/internal/fingerprint"
	"jobsync/internal/model"
	"jobsync/internal/query"
	"jobsync/internal/source"
	"jobsync/internal/store"
)

const (
	DefaultTTL    = 30 * time.Minute
	RecencyWindow = 30 * 24 * time.Hour
)

// Options tune an Aggregator. Zero values take defaults.
type Options struct {
	TTL            time.Duration
	AdapterTimeout time.Duration
	Priority       []model.Source // defaults to model.AllSources
	Hasher         fingerprint.Func
	Now            func() time.Time
}

// Aggregator fetches, caches and serves postings without a server store.
type Aggregator struct {
	cache Cache
	reg   *source.Registry
	opts  Options

	mu sync.Mutex // serialises refreshes and applied-map writes
}

func New(cache Cache, reg *source.Registry, opts Options) *Aggregator {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = 20 * time.Second
	}
	if len(opts.Priority) == 0 {
		opts.Priority = model.AllSources
	}
	if opts.Hasher == nil {
		opts.Hasher = fingerprint.Of
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Aggregator{cache: cache, reg: reg, opts: opts}
}

// ─── Refresh ─────────────────────────────────────────────────────────────────

// Snapshot returns the cached set, refreshing it first when absent or
// older than the TTL.
func (a *Aggregator) Snapshot(ctx context.Context) (*Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	snap, err := a.cache.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	if snap != nil && a.opts.Now().Sub(snap.FetchedAt) < a.opts.TTL {
		return snap, nil
	}
	return a.refreshLocked(ctx, snap)
}

// Refresh runs every adapter now, regardless of cache age.
func (a *Aggregator) Refresh(ctx context.Context) (*Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev, err := a.cache.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	return a.refreshLocked(ctx, prev)
}

// refreshLocked fetches all adapters concurrently without batching. If
// every adapter fails and prev exists, prev is kept.
func (a *Aggregator) refreshLocked(ctx context.Context, prev *Snapshot) (*Snapshot, error) {
	adapters := a.reg.Adapters()
	fetched := make([][]model.RawPosting, len(adapters))
	errs := make([]error, len(adapters))

	var g errgroup.Group
	for i, ad := range adapters {
		i, ad := i, ad
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, a.opts.AdapterTimeout)
			defer cancel()
			fetched[i], errs[i] = ad.Fetch(actx)
			return nil
		})
	}
	g.Wait()

	now := a.opts.Now()
	snap := &Snapshot{FetchedAt: now, Jobs: []model.Posting{}}
	seen := make(map[string]struct{})
	failures := 0

	for i, ad := range adapters {
		res := model.SourceResult{Source: ad.Name()}
		if errs[i] != nil {
			failures++
			res.Error = errs[i].Error()
			slog.Warn("adapter failed", "source", ad.Name(), "err", errs[i])
			snap.Results = append(snap.Results, res)
			continue
		}
		for _, raw := range fetched[i] {
			fp := a.opts.Hasher(string(ad.Name()), raw.Title, raw.Company, raw.Location)
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
			snap.Jobs = append(snap.Jobs, toPosting(ad.Name(), raw, fp, now))
			res.New++
		}
		res.Found = len(fetched[i])
		res.Success = true
		snap.Results = append(snap.Results, res)
	}

	if failures == len(adapters) && len(adapters) > 0 && prev != nil {
		slog.Warn("every adapter failed, keeping previous cache", "cached_at", prev.FetchedAt)
		return prev, nil
	}
	if err := a.cache.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("save cache: %w", err)
	}
	slog.Info("local cache refreshed", "jobs", len(snap.Jobs), "failed", failures)
	return snap, nil
}

func toPosting(src model.Source, raw model.RawPosting, fp string, now time.Time) model.Posting {
	posted := now
	if raw.PostedAt != nil && !raw.PostedAt.IsZero() {
		posted = *raw.PostedAt
	}
	return model.Posting{
		ID:          uuid.NewString(),
		Fingerprint: fp,
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

// ─── Reads ───────────────────────────────────────────────────────────────────

// view returns the cached set with applied marks overlaid.
func (a *Aggregator) view(ctx context.Context) (*Snapshot, []model.Posting, error) {
	snap, err := a.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	applied, err := a.cache.LoadApplied(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load applied: %w", err)
	}
	jobs := make([]model.Posting, len(snap.Jobs))
	copy(jobs, snap.Jobs)
	for i := range jobs {
		jobs[i].AppliedAt = nil
		if at, ok := applied[jobs[i].Fingerprint]; ok {
			at := at
			jobs[i].AppliedAt = &at
		}
	}
	return snap, jobs, nil
}

// List filters like the server store, then drops postings older than the
// recency window and orders by source priority.
func (a *Aggregator) List(ctx context.Context, p query.ListParams) (*query.ListResult, error) {
	f, page, limit := query.Normalize(p)
	_, jobs, err := a.view(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := a.opts.Now().Add(-RecencyWindow)
	matched := make([]model.Posting, 0, len(jobs))
	for i := range jobs {
		if jobs[i].PostedAt.Before(cutoff) {
			continue
		}
		if store.Match(&jobs[i], f) {
			matched = append(matched, jobs[i])
		}
	}
	SortClient(matched, a.opts.Priority)

	return &query.ListResult{
		Jobs: store.Paginate(matched, page, limit),
		Pagination: query.Pagination{
			Total:      len(matched),
			Page:       page,
			Limit:      limit,
			TotalPages: query.TotalPages(len(matched), limit),
		},
	}, nil
}

// Stats counts over the whole cached set with applied marks overlaid.
func (a *Aggregator) Stats(ctx context.Context) (*query.StatsResult, error) {
	snap, jobs, err := a.view(ctx)
	if err != nil {
		return nil, err
	}
	last := snap.FetchedAt
	next := last.Add(a.opts.TTL)
	return &query.StatsResult{
		Stats:            store.ComputeStats(jobs),
		LastFetch:        &last,
		NextFetch:        &next,
		LastFetchResults: snap.Results,
	}, nil
}

// MarkApplied records a local applied timestamp for id.
func (a *Aggregator) MarkApplied(ctx context.Context, id string) error {
	return a.setApplied(ctx, id, true)
}

// UnmarkApplied removes the local applied mark for id.
func (a *Aggregator) UnmarkApplied(ctx context.Context, id string) error {
	return a.setApplied(ctx, id, false)
}

func (a *Aggregator) setApplied(ctx context.Context, id string, applied bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Even an expired snapshot holds the ids the caller last saw.
	snap, err := a.cache.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cache: %w", err)
	}
	fp := ""
	if snap != nil {
		for i := range snap.Jobs {
			if snap.Jobs[i].ID == id {
				fp = snap.Jobs[i].Fingerprint
				break
			}
		}
	}
	if fp == "" {
		return store.ErrNotFound
	}

	marks, err := a.cache.LoadApplied(ctx)
	if err != nil {
		return fmt.Errorf("load applied: %w", err)
	}
	if applied {
		marks[fp] = a.opts.Now().UTC()
	} else {
		delete(marks, fp)
	}
	return a.cache.SaveApplied(ctx, marks)
}
