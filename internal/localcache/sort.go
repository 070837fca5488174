package localcache

import (
	"sort"

	"jobsync/internal/model"
)

// SortClient orders by the fixed source priority, then posted_at
// descending. Sources missing from priority sort last. Ties break on id.
func SortClient(ps []model.Posting, priority []model.Source) {
	rank := make(map[model.Source]int, len(priority))
	for i, s := range priority {
		rank[s] = i
	}
	rankOf := func(s model.Source) int {
		if r, ok := rank[s]; ok {
			return r
		}
		return len(priority)
	}
	sort.SliceStable(ps, func(i, j int) bool {
		ri, rj := rankOf(ps[i].Source), rankOf(ps[j].Source)
		if ri != rj {
			return ri < rj
		}
		if !ps[i].PostedAt.Equal(ps[j].PostedAt) {
			return ps[i].PostedAt.After(ps[j].PostedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
