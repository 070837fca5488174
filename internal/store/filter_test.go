package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"jobsync/internal/model"
	"jobsync/internal/store"
)

func TestSortServer_Order(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ps := []model.Posting{
		{ID: "c", IsNew: false, FetchedAt: t0.Add(2 * time.Hour)},
		{ID: "b", IsNew: true, FetchedAt: t0},
		{ID: "a", IsNew: true, FetchedAt: t0},
		{ID: "d", IsNew: true, FetchedAt: t0.Add(time.Hour)},
	}
	store.SortServer(ps)

	var ids []string
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids)
}

func TestPaginate_OutOfRange(t *testing.T) {
	ps := make([]model.Posting, 5)
	assert.Len(t, store.Paginate(ps, 1, 2), 2)
	assert.Len(t, store.Paginate(ps, 3, 2), 1)
	assert.Empty(t, store.Paginate(ps, 4, 2))
	assert.NotNil(t, store.Paginate(ps, 9, 2))
}

func TestComputeStats(t *testing.T) {
	now := time.Now()
	ps := []model.Posting{
		{Source: model.SourceNaukri, IsNew: true, IsRemote: true},
		{Source: model.SourceNaukri, AppliedAt: &now},
		{Source: model.SourceIndeed, IsNew: true},
	}
	st := store.ComputeStats(ps)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.NewCount)
	assert.Equal(t, 1, st.AppliedCount)
	assert.Equal(t, 1, st.RemoteCount)
	assert.Equal(t, map[model.Source]int{model.SourceNaukri: 2, model.SourceIndeed: 1}, st.BySource)
}

func TestOffset(t *testing.T) {
	cases := []struct{ page, size, want int }{
		{1, 24, 0},
		{2, 24, 24},
		{0, 10, 0},
		{-3, 10, 0},
	}
	for _, c := range cases {
		if got := store.Offset(c.page, c.size); got != c.want {
			t.Errorf("Offset(%d, %d) = %d, want %d", c.page, c.size, got, c.want)
		}
	}
}
