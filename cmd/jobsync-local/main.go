// jobsync-local runs the serverless variant from a terminal: adapters are
// invoked directly when the local cache is stale, and applied marks live
// in the cache next to the merged result set.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pterm/pterm"

	"jobsync/internal/config"
	"jobsync/internal/db"
	"jobsync/internal/localcache"
	"jobsync/internal/query"
	"jobsync/internal/source"
	"jobsync/internal/store"
)

func main() {
	_ = godotenv.Load()

	src := flag.String("source", "", "only show postings from this source")
	remote := flag.String("remote", "", `"true" or "false" to filter on remote postings`)
	search := flag.String("search", "", "case-insensitive text search")
	newOnly := flag.Bool("new", false, "only postings from the latest refresh")
	appliedOnly := flag.Bool("applied", false, "only postings marked applied")
	page := flag.Int("page", 1, "page number")
	limit := flag.Int("limit", query.DefaultLimit, "page size")
	apply := flag.String("apply", "", "mark the posting with this id as applied")
	unapply := flag.String("unapply", "", "clear the applied mark on this id")
	refresh := flag.Bool("refresh", false, "ignore the cache TTL and fetch now")
	stats := flag.Bool("stats", false, "print counts instead of the listing")
	flag.Parse()

	cfg, err := config.LoadLocal()
	if err != nil {
		log.Fatalf("[jobsync-local] Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		log.Fatalf("[jobsync-local] Cache: %v", err)
	}
	defer closeCache()

	reg := source.Default(source.Options{
		Keywords:      cfg.Keywords,
		ExcludeTerms:  cfg.ExcludeTerms,
		RPS:           cfg.SourceRPS,
		AdzunaAppID:   cfg.AdzunaAppID,
		AdzunaAppKey:  cfg.AdzunaAppKey,
		AdzunaCountry: cfg.AdzunaCountry,
	}, cfg.Enabled)
	progress := newProgress(len(reg.Adapters()))

	agg := localcache.New(cache, progress.wrap(reg), localcache.Options{
		TTL:            cfg.CacheTTL,
		AdapterTimeout: cfg.AdapterTimeout,
		Priority:       cfg.Priority,
	})

	if *refresh {
		if _, err := agg.Refresh(ctx); err != nil {
			fatal(err)
		}
		progress.finish()
	}

	switch {
	case *apply != "":
		markApplied(ctx, agg.MarkApplied, *apply, "Marked %s as applied")
		return
	case *unapply != "":
		markApplied(ctx, agg.UnmarkApplied, *unapply, "Cleared applied mark on %s")
		return
	}

	if *stats {
		res, err := agg.Stats(ctx)
		progress.finish()
		if err != nil {
			fatal(err)
		}
		renderStats(res)
		return
	}

	params := query.ListParams{
		Source:      *src,
		Search:      *search,
		NewOnly:     *newOnly,
		AppliedOnly: *appliedOnly,
		Page:        *page,
		Limit:       *limit,
	}
	switch *remote {
	case "true", "false":
		v := *remote == "true"
		params.IsRemote = &v
	case "":
	default:
		fatal(fmt.Errorf("-remote must be true or false, got %q", *remote))
	}

	res, err := agg.List(ctx, params)
	progress.finish()
	if err != nil {
		fatal(err)
	}
	renderList(res)
}

func openCache(ctx context.Context, cfg *config.Config) (localcache.Cache, func(), error) {
	if cfg.CacheBackend == "redis" {
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return localcache.NewRedisCache(rdb, "", cfg.CacheTTL), func() { rdb.Close() }, nil
	}
	c, err := localcache.NewFileCache(cfg.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	return c, func() {}, nil
}

func markApplied(ctx context.Context, fn func(context.Context, string) error, id, msg string) {
	err := fn(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		pterm.Error.Printfln("No posting with id %s in the current cache", id)
		os.Exit(1)
	case err != nil:
		fatal(err)
	}
	pterm.Success.Printfln(msg, id)
}

func fatal(err error) {
	if query.IsValidation(err) {
		pterm.Error.Println(err.Error())
		os.Exit(2)
	}
	pterm.Fatal.Println(err.Error())
}

func sortedSources(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
