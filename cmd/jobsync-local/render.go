package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/pterm/pterm"

	"jobsync/internal/model"
	"jobsync/internal/query"
	"jobsync/internal/source"
)

// ─── Progress ─────────────────────────────────────────────────────────────────

// progress shows a bar while adapters run. It only appears when a refresh
// actually happens.
type progress struct {
	total int
	once  sync.Once
	bar   *pb.ProgressBar
	mu    sync.Mutex
}

func newProgress(total int) *progress { return &progress{total: total} }

func (p *progress) wrap(reg *source.Registry) *source.Registry {
	var wrapped []source.Adapter
	for _, a := range reg.Adapters() {
		wrapped = append(wrapped, tracked{Adapter: a, p: p})
	}
	return source.NewRegistry(wrapped...)
}

func (p *progress) start() {
	p.once.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.bar = pb.StartNew(p.total)
	})
}

func (p *progress) increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *progress) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

type tracked struct {
	source.Adapter
	p *progress
}

func (t tracked) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	t.p.start()
	defer t.p.increment()
	return t.Adapter.Fetch(ctx)
}

// ─── Tables ───────────────────────────────────────────────────────────────────

func renderList(res *query.ListResult) {
	if len(res.Jobs) == 0 {
		pterm.Info.Println("No postings match.")
		return
	}

	data := pterm.TableData{{"Source", "Title", "Company", "Location", "Posted", "Applied", "ID"}}
	for _, j := range res.Jobs {
		title := clip(j.Title, 48)
		if j.IsNew {
			title = pterm.LightGreen(title)
		}
		applied := ""
		if j.AppliedAt != nil {
			applied = pterm.Green(humanize.Time(*j.AppliedAt))
		}
		data = append(data, []string{
			string(j.Source),
			title,
			clip(j.Company, 28),
			clip(j.Location, 24),
			humanize.Time(j.PostedAt),
			applied,
			j.ID,
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Println(err.Error())
	}

	pg := res.Pagination
	pterm.Info.Printfln("Page %d of %d, %s postings", pg.Page, pg.TotalPages, humanize.Comma(int64(pg.Total)))
}

func renderStats(res *query.StatsResult) {
	pterm.DefaultSection.Println("Postings")
	bySource := make(map[string]int, len(res.BySource))
	for s, n := range res.BySource {
		bySource[string(s)] = n
	}

	data := pterm.TableData{{"Source", "Postings"}}
	for _, s := range sortedSources(bySource) {
		data = append(data, []string{s, humanize.Comma(int64(bySource[s]))})
	}
	data = append(data,
		[]string{"Total", humanize.Comma(int64(res.Total))},
		[]string{"New", humanize.Comma(int64(res.NewCount))},
		[]string{"Remote", humanize.Comma(int64(res.RemoteCount))},
		[]string{"Applied", humanize.Comma(int64(res.AppliedCount))},
	)
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		pterm.Error.Println(err.Error())
	}

	if res.LastFetch != nil {
		pterm.Info.Printfln("Last refreshed %s, expires %s",
			humanize.Time(*res.LastFetch), humanize.Time(*res.NextFetch))
	}
	for _, r := range res.LastFetchResults {
		if !r.Success {
			pterm.Warning.Printfln("%s failed: %s", r.Source, r.Error)
		}
	}
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return fmt.Sprintf("%s…", string(r[:n-1]))
}
