package store

import (
	"sort"
	"strings"

	"jobsync/internal/model"
)

// Match reports whether p satisfies every constraint in f. Backends that
// cannot push filters down to the engine use it, as does the local cache.
func Match(p *model.Posting, f Filter) bool {
	if f.Source != "" && p.Source != f.Source {
		return false
	}
	if f.IsRemote != nil && p.IsRemote != *f.IsRemote {
		return false
	}
	if f.NewOnly && !p.IsNew {
		return false
	}
	if f.AppliedOnly && p.AppliedAt == nil {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !containsFold(p.Title, needle) &&
			!containsFold(p.Company, needle) &&
			!containsFold(p.Location, needle) &&
			!containsFold(p.Skills, needle) {
			return false
		}
	}
	return true
}

func containsFold(haystack, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(haystack), lowerNeedle)
}

// SortServer orders postings newest-cycle first: IsNew desc, FetchedAt desc,
// then ID asc so the order is total and pages never overlap.
func SortServer(ps []model.Posting) {
	sort.SliceStable(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		if a.IsNew != b.IsNew {
			return a.IsNew
		}
		if !a.FetchedAt.Equal(b.FetchedAt) {
			return a.FetchedAt.After(b.FetchedAt)
		}
		return a.ID < b.ID
	})
}

// Paginate slices one page out of an already ordered result.
func Paginate(ps []model.Posting, page, pageSize int) []model.Posting {
	off := Offset(page, pageSize)
	if off >= len(ps) || pageSize <= 0 {
		return []model.Posting{}
	}
	end := off + pageSize
	if end > len(ps) {
		end = len(ps)
	}
	out := make([]model.Posting, end-off)
	copy(out, ps[off:end])
	return out
}

// ComputeStats counts over ps without filtering.
func ComputeStats(ps []model.Posting) model.Stats {
	st := model.Stats{BySource: make(map[model.Source]int)}
	for i := range ps {
		p := &ps[i]
		st.Total++
		if p.IsNew {
			st.NewCount++
		}
		if p.AppliedAt != nil {
			st.AppliedCount++
		}
		if p.IsRemote {
			st.RemoteCount++
		}
		st.BySource[p.Source]++
	}
	return st
}

// FilterSortPage runs Match, SortServer and Paginate over an in-memory set.
func FilterSortPage(all []model.Posting, f Filter, page, pageSize int) ([]model.Posting, int) {
	matched := make([]model.Posting, 0, len(all))
	for i := range all {
		if Match(&all[i], f) {
			matched = append(matched, all[i])
		}
	}
	SortServer(matched)
	return Paginate(matched, page, pageSize), len(matched)
}
