// Package store is the durable record store for postings, cycle state and the
// scrape audit log.
//
// Every backend honours the same contract: fingerprints are unique, a
// duplicate insert is reported as inserted=false rather than an error, and
// writes are serialised by the backend (unique constraint, mutex or
// conditional put) so concurrent readers never observe a broken invariant.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobsync/internal/model"
)

// ErrNotFound is returned when a posting id does not exist.
var ErrNotFound = errors.New("posting not found")

// ErrUnavailable wraps any failure of the underlying storage engine.
var ErrUnavailable = errors.New("store unavailable")

// Filter is a conjunction of optional constraints. Zero values mean
// "no constraint".
type Filter struct {
	Source      model.Source
	IsRemote    *bool
	NewOnly     bool
	AppliedOnly bool
	Search      string
}

// Store is the record store contract shared by all backends.
type Store interface {
	// InsertIfAbsent creates the posting with IsNew=true and AppliedAt=nil
	// unless its fingerprint already exists, in which case nothing changes.
	InsertIfAbsent(ctx context.Context, p *model.Posting) (inserted bool, err error)

	// ResetFreshness clears IsNew on every posting and reports how many changed.
	ResetFreshness(ctx context.Context) (int64, error)

	// Query returns one page of postings matching f, ordered by SortServer,
	// plus the total number of matches.
	Query(ctx context.Context, f Filter, page, pageSize int) ([]model.Posting, int, error)

	// Stats aggregates over the full unfiltered set.
	Stats(ctx context.Context) (model.Stats, error)

	// GetByID returns ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*model.Posting, error)

	// SetApplied sets or clears (at == nil) the applied timestamp.
	// Returns ErrNotFound for unknown ids.
	SetApplied(ctx context.Context, id string, at *time.Time) error

	GetState(ctx context.Context, key string) (value string, ok bool, err error)
	SetState(ctx context.Context, key, value string) error
	// SetStates replaces several keys in one write where the backend allows it.
	SetStates(ctx context.Context, kv map[string]string) error

	AppendLog(ctx context.Context, e model.ScrapeLogEntry) error

	Ping(ctx context.Context) error
	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Offset converts a 1-indexed page number into a row offset.
func Offset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}

var errClosed = errors.New("store closed")
