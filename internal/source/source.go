// Package source implements one adapter per job board. Adapters fetch and
// normalise listings into model.RawPosting; they never touch the store.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"jobsync/internal/fingerprint"
	"jobsync/internal/model"
)

// Adapter fetches the current listings of one job board. Fetch fails only
// when nothing could be retrieved; a partially failing search set still
// returns what it found.
type Adapter interface {
	Name() model.Source
	Fetch(ctx context.Context) ([]model.RawPosting, error)
}

// Registry is the ordered set of adapters a cycle runs.
type Registry struct {
	adapters []Adapter
}

// NewRegistry keeps adapters in the order given.
func NewRegistry(adapters ...Adapter) *Registry {
	return &Registry{adapters: adapters}
}

// Adapters returns the registered adapters in registry order.
func (r *Registry) Adapters() []Adapter {
	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Options configures the default adapter set.
type Options struct {
	Keywords      []string
	ExcludeTerms  []string
	RPS           float64
	AdzunaAppID   string
	AdzunaAppKey  string
	AdzunaCountry string
}

// Default builds the adapters named in enabled, in registry order.
func Default(opts Options, enabled []model.Source) *Registry {
	want := make(map[model.Source]bool, len(enabled))
	for _, s := range enabled {
		want[s] = true
	}

	var adapters []Adapter
	for _, s := range model.AllSources {
		if !want[s] {
			continue
		}
		var a Adapter
		switch s {
		case model.SourceLinkedIn:
			a = NewLinkedIn(opts)
		case model.SourceRemotive:
			a = NewRemotive(opts)
		case model.SourceNaukri:
			a = NewNaukri(opts)
		case model.SourceInternshala:
			a = NewInternshala(opts)
		case model.SourceTimesJobs:
			a = NewTimesJobs(opts)
		case model.SourceAdzuna:
			a = NewAdzuna(opts)
		case model.SourceIndeed:
			a = NewIndeed(opts)
		}
		if len(opts.ExcludeTerms) > 0 {
			a = WithExclusions(a, opts.ExcludeTerms)
		}
		adapters = append(adapters, a)
	}
	return NewRegistry(adapters...)
}

// searchFunc fetches one search target (URL or keyword) of an adapter.
type searchFunc func(ctx context.Context, target string) ([]model.RawPosting, error)

// runSearches runs fn for every target sequentially, dedups within the
// adapter by fingerprint and reports failure only when every target failed
// or ctx expired.
func runSearches(ctx context.Context, src model.Source, targets []string, fn searchFunc) ([]model.RawPosting, error) {
	var (
		out      []model.RawPosting
		failures int
		lastErr  error
	)
	seen := make(map[string]bool)

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", src, err)
		}
		batch, err := fn(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: %w", src, ctx.Err())
			}
			failures++
			lastErr = err
			slog.Warn("search failed", "source", src, "target", target, "err", err)
			continue
		}
		for _, rp := range batch {
			key := fingerprint.Of(string(src), rp.Title, rp.Company, rp.Location)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, rp)
		}
	}

	if len(targets) > 0 && failures == len(targets) {
		return nil, fmt.Errorf("%s: all %d searches failed: %w", src, failures, lastErr)
	}
	return out, nil
}
