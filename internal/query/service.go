// Package query is the read and apply surface over the record store.
// It is transport-agnostic: used by both the HTTP handler and the gRPC server.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jobsync/internal/events"
	"jobsync/internal/model"
	"jobsync/internal/store"
)

const (
	DefaultLimit = 24
	MaxLimit     = 100
)

// ─── Types ───────────────────────────────────────────────────────────────────

// ListParams are the raw listing inputs. Zero values mean "no constraint".
type ListParams struct {
	Source      string
	IsRemote    *bool
	Search      string
	NewOnly     bool
	AppliedOnly bool
	Page        int
	Limit       int
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type ListResult struct {
	Jobs       []model.Posting `json:"jobs"`
	Pagination Pagination      `json:"pagination"`
}

// StatsResult is the aggregate counts plus the current CycleState.
type StatsResult struct {
	model.Stats
	LastFetch        *time.Time           `json:"last_fetch"`
	NextFetch        *time.Time           `json:"next_fetch"`
	LastFetchResults []model.SourceResult `json:"last_fetch_results"`
}

type HealthResult struct {
	Status     string     `json:"status"`
	LastFetch  *time.Time `json:"last_fetch"`
	NextFetch  *time.Time `json:"next_fetch"`
	Timestamp  time.Time  `json:"timestamp"`
	CycleState string     `json:"cycle_state,omitempty"`
}

// ─── Service ─────────────────────────────────────────────────────────────────

type Service struct {
	store      store.Store
	events     events.Publisher
	now        func() time.Time
	cycleState func() string
}

// Option customises a Service.
type Option func(*Service)

// WithCycleState reports the in-process orchestrator state on Health.
func WithCycleState(fn func() string) Option { return func(s *Service) { s.cycleState = fn } }

// NewService returns a Service. A nil publisher disables events.
func NewService(st store.Store, pub events.Publisher, opts ...Option) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	s := &Service{store: st, events: pub, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns one page of postings matching p, in server order.
func (s *Service) List(ctx context.Context, p ListParams) (*ListResult, error) {
	f, page, limit := Normalize(p)
	jobs, total, err := s.store.Query(ctx, f, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	if jobs == nil {
		jobs = []model.Posting{}
	}
	return &ListResult{
		Jobs: jobs,
		Pagination: Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: TotalPages(total, limit),
		},
	}, nil
}

// Stats returns counts over the unfiltered posting set and the cycle record.
func (s *Service) Stats(ctx context.Context) (*StatsResult, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	st, err := store.LoadCycleState(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &StatsResult{
		Stats:            stats,
		LastFetch:        st.LastFetch,
		NextFetch:        st.NextFetch,
		LastFetchResults: st.LastResults,
	}, nil
}

// Health pings the store and reports cycle timing.
func (s *Service) Health(ctx context.Context) (*HealthResult, error) {
	if err := s.store.Ping(ctx); err != nil {
		return nil, err
	}
	st, err := store.LoadCycleState(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("health: %w", err)
	}
	res := &HealthResult{
		Status:    "ok",
		LastFetch: st.LastFetch,
		NextFetch: st.NextFetch,
		Timestamp: s.now().UTC(),
	}
	if s.cycleState != nil {
		res.CycleState = s.cycleState()
	}
	return res, nil
}

// Apply stamps applied_at on the posting. Returns store.ErrNotFound for an
// unknown id.
func (s *Service) Apply(ctx context.Context, id string) error {
	return s.setApplied(ctx, id, true)
}

// Unapply clears applied_at. Returns store.ErrNotFound for an unknown id.
func (s *Service) Unapply(ctx context.Context, id string) error {
	return s.setApplied(ctx, id, false)
}

func (s *Service) setApplied(ctx context.Context, id string, applied bool) error {
	if id == "" {
		return &ValidationError{Msg: "job id is required"}
	}
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return err
	}

	var at *time.Time
	channel := events.JobUnapplied
	if applied {
		now := s.now().UTC()
		at = &now
		channel = events.JobApplied
	}
	if err := s.store.SetApplied(ctx, id, at); err != nil {
		return err
	}

	s.events.Publish(ctx, channel, map[string]any{"jobId": id})
	return nil
}

// TotalPages is ceil(total/limit), 0 when there is nothing to page.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Normalize resolves p into a store filter plus the effective page and
// limit. It never rejects a listing: an unrecognised source is kept
// verbatim so it matches nothing, and out-of-range paging falls back to
// the defaults.
func Normalize(p ListParams) (store.Filter, int, int) {
	f := store.Filter{
		IsRemote:    p.IsRemote,
		NewOnly:     p.NewOnly,
		AppliedOnly: p.AppliedOnly,
		Search:      p.Search,
	}
	if p.Source != "" {
		if src, err := model.ParseSource(p.Source); err == nil {
			f.Source = src
		} else {
			f.Source = model.Source(p.Source)
		}
	}

	page, limit := p.Page, p.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return f, page, limit
}

// ─── Errors ──────────────────────────────────────────────────────────────────

// ErrNotFound is the store's sentinel, re-exported for transports.
var ErrNotFound = store.ErrNotFound

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
