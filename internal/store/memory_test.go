package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobsync/internal/model"
	"jobsync/internal/store"
)

func posting(id, fp string, src model.Source, fetched time.Time) *model.Posting {
	return &model.Posting{
		ID:          id,
		Fingerprint: fp,
		Title:       "Data Analyst " + id,
		Company:     "Acme",
		Location:    "Bengaluru",
		Source:      src,
		PostedAt:    fetched,
		FetchedAt:   fetched,
	}
}

// ── InsertIfAbsent ─────────────────────────────────────────────────────────

func TestMemory_InsertIfAbsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	now := time.Now()

	inserted, err := s.InsertIfAbsent(ctx, posting("a", "fp1", model.SourceNaukri, now))
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := posting("b", "fp1", model.SourceNaukri, now.Add(time.Minute))
	dup.Title = "something else"
	inserted, err = s.InsertIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted, "second insert of the same fingerprint must be ignored")

	items, total, err := s.Query(ctx, store.Filter{}, 1, 24)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID, "first-seen record wins")
	assert.Equal(t, "Data Analyst a", items[0].Title)

	_, err = s.GetByID(ctx, "b")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemory_InsertForcesFreshAndUnapplied(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	applied := time.Now()
	p := posting("a", "fp1", model.SourceIndeed, time.Now())
	p.IsNew = false
	p.AppliedAt = &applied

	_, err := s.InsertIfAbsent(ctx, p)
	require.NoError(t, err)

	got, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, got.IsNew)
	assert.Nil(t, got.AppliedAt)
}

// ── ResetFreshness ─────────────────────────────────────────────────────────

func TestMemory_ResetFreshness(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	now := time.Now()
	for i := 0; i < 3; i++ {
		_, err := s.InsertIfAbsent(ctx, posting(fmt.Sprint(i), fmt.Sprint("fp", i), model.SourceRemotive, now))
		require.NoError(t, err)
	}

	n, err := s.ResetFreshness(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.NewCount)
	assert.Equal(t, 3, st.Total)

	n, err = s.ResetFreshness(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

// ── Query ──────────────────────────────────────────────────────────────────

func TestMemory_PaginationPartitionsResult(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	const n = 53
	for i := 0; i < n; i++ {
		// Several records share a fetched_at so the id tie-break matters.
		_, err := s.InsertIfAbsent(ctx, posting(fmt.Sprintf("id%02d", i), fmt.Sprint("fp", i), model.SourceLinkedIn, base.Add(time.Duration(i/4)*time.Minute)))
		require.NoError(t, err)
	}
	_, err := s.ResetFreshness(ctx)
	require.NoError(t, err)
	for i := n; i < n+7; i++ {
		_, err := s.InsertIfAbsent(ctx, posting(fmt.Sprintf("id%02d", i), fmt.Sprint("fp", i), model.SourceLinkedIn, base))
		require.NoError(t, err)
	}

	all, total, err := s.Query(ctx, store.Filter{}, 1, 1000)
	require.NoError(t, err)
	require.Equal(t, n+7, total)

	seen := make(map[string]bool)
	var concat []model.Posting
	for page := 1; page <= 7; page++ {
		items, tot, err := s.Query(ctx, store.Filter{}, page, 10)
		require.NoError(t, err)
		assert.Equal(t, n+7, tot)
		for _, p := range items {
			assert.False(t, seen[p.ID], "id %s appeared on two pages", p.ID)
			seen[p.ID] = true
		}
		concat = append(concat, items...)
	}
	assert.Len(t, seen, n+7)
	assert.Equal(t, all, concat)

	for i := 0; i < 7; i++ {
		assert.True(t, all[i].IsNew, "fresh records sort first")
	}
}

func TestMemory_QueryFilters(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	now := time.Now()

	a := posting("a", "fa", model.SourceRemotive, now)
	a.IsRemote = true
	a.Skills = "SQL, Tableau"
	b := posting("b", "fb", model.SourceNaukri, now)
	b.Company = "Globex"
	c := posting("c", "fc", model.SourceNaukri, now)
	c.Location = "Remote - India"
	for _, p := range []*model.Posting{a, b, c} {
		_, err := s.InsertIfAbsent(ctx, p)
		require.NoError(t, err)
	}
	require.NoError(t, s.SetApplied(ctx, "b", &now))

	remote, notRemote := true, false
	cases := []struct {
		name string
		f    store.Filter
		want int
	}{
		{"no filter", store.Filter{}, 3},
		{"source", store.Filter{Source: model.SourceNaukri}, 2},
		{"remote", store.Filter{IsRemote: &remote}, 1},
		{"not remote", store.Filter{IsRemote: &notRemote}, 2},
		{"applied", store.Filter{AppliedOnly: true}, 1},
		{"new only", store.Filter{NewOnly: true}, 3},
		{"search company", store.Filter{Search: "GLOBEX"}, 1},
		{"search skills", store.Filter{Search: "tableau"}, 1},
		{"search location", store.Filter{Search: "remote"}, 1},
		{"conjunction", store.Filter{Source: model.SourceNaukri, AppliedOnly: true, Search: "acme"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, total, err := s.Query(ctx, tc.f, 1, 24)
			require.NoError(t, err)
			assert.Equal(t, tc.want, total)
		})
	}
}

// ── Apply / state ──────────────────────────────────────────────────────────

func TestMemory_SetAppliedUnknownID(t *testing.T) {
	s := store.NewMemory()
	now := time.Now()
	err := s.SetApplied(context.Background(), "missing", &now)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemory_SetAppliedRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	now := time.Now()
	_, err := s.InsertIfAbsent(ctx, posting("a", "fa", model.SourceAdzuna, now))
	require.NoError(t, err)

	require.NoError(t, s.SetApplied(ctx, "a", &now))
	got, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got.AppliedAt)
	assert.True(t, got.AppliedAt.Equal(now))

	require.NoError(t, s.SetApplied(ctx, "a", nil))
	got, err = s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got.AppliedAt)
}

func TestMemory_ClosedIsUnavailable(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Close())

	_, err := s.InsertIfAbsent(context.Background(), posting("a", "fa", model.SourceAdzuna, time.Now()))
	assert.True(t, errors.Is(err, store.ErrUnavailable))
	assert.ErrorIs(t, s.Ping(context.Background()), store.ErrUnavailable)
}

func TestCycleState_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	empty, err := store.LoadCycleState(ctx, s)
	require.NoError(t, err)
	assert.Nil(t, empty.LastFetch)
	assert.Nil(t, empty.NextFetch)
	assert.Empty(t, empty.LastResults)

	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next := last.Add(time.Hour)
	want := model.CycleState{
		LastFetch: &last,
		NextFetch: &next,
		LastResults: []model.SourceResult{
			{Source: model.SourceLinkedIn, Found: 4, New: 2, Success: true},
			{Source: model.SourceIndeed, Success: false, Error: "timeout"},
		},
	}
	require.NoError(t, store.SaveCycleState(ctx, s, want))

	got, err := store.LoadCycleState(ctx, s)
	require.NoError(t, err)
	require.NotNil(t, got.LastFetch)
	assert.True(t, got.LastFetch.Equal(last))
	assert.True(t, got.NextFetch.Equal(next))
	assert.Equal(t, want.LastResults, got.LastResults)
}
