// jobsync aggregator
//
// Scrapes job postings from seven boards on a cron schedule, deduplicates
// them by content fingerprint into the record store and serves the merged
// listing over HTTP and gRPC:
//   - GET  {prefix}/jobs, /jobs/stats, /jobs/health
//   - POST / DELETE {prefix}/jobs/{id}/apply
//   - jobsync.v1.JobService on GRPC_PORT
//
// Publishes EVENT_CYCLE_COMPLETED / EVENT_JOB_APPLIED / EVENT_JOB_UNAPPLIED
// to Redis when REDIS_URL is set.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"jobsync/internal/aggregator"
	"jobsync/internal/config"
	"jobsync/internal/db"
	"jobsync/internal/events"
	"jobsync/internal/grpcserver"
	"jobsync/internal/httpapi"
	"jobsync/internal/query"
	"jobsync/internal/scheduler"
	"jobsync/internal/source"
	"jobsync/internal/store"
)

const version = "1.0.0"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[jobsync] No .env file found, using process environment")
	}

	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[jobsync] Config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Record store ─────────────────────────────────────────────────────────
	log.Printf("[jobsync] Opening %s store…", cfg.Store.Backend)
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("[jobsync] Store: %v", err)
	}
	defer st.Close()
	log.Printf("[jobsync] %s store ready ✓", cfg.Store.Backend)

	// ── Redis (optional) ─────────────────────────────────────────────────────
	var pub events.Publisher = events.Nop{}
	if cfg.RedisURL != "" {
		log.Println("[jobsync] Connecting to Redis…")
		rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("[jobsync] Redis: %v", err)
		}
		defer rdb.Close()
		pub = events.NewRedisPublisher(rdb)
		log.Println("[jobsync] Redis connected ✓")
	}

	// ── Aggregation ──────────────────────────────────────────────────────────
	reg := source.Default(source.Options{
		Keywords:      cfg.Keywords,
		ExcludeTerms:  cfg.ExcludeTerms,
		RPS:           cfg.SourceRPS,
		AdzunaAppID:   cfg.AdzunaAppID,
		AdzunaAppKey:  cfg.AdzunaAppKey,
		AdzunaCountry: cfg.AdzunaCountry,
	}, cfg.Enabled)

	orch := aggregator.New(st, reg, aggregator.Config{
		BatchSize:      cfg.BatchSize,
		BatchPause:     cfg.BatchPause,
		AdapterTimeout: cfg.AdapterTimeout,
		Interval:       cfg.CycleInterval,
	}, aggregator.WithPublisher(pub))

	sched := scheduler.New(orch, cfg.CycleSchedule)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[jobsync] Scheduler: %v", err)
	}

	// ── Servers ──────────────────────────────────────────────────────────────
	svc := query.NewService(st, pub, query.WithCycleState(func() string { return orch.State().String() }))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      httpapi.NewHandler(svc, cfg.APIPrefix, version).Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	gsrv := grpc.NewServer()
	grpcserver.RegisterJobServiceServer(gsrv, grpcserver.NewServer(svc))
	hsrv := health.NewServer()
	hsrv.SetServingStatus(grpcserver.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gsrv, hsrv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("[jobsync] v%s HTTP listening on :%s (prefix %q)", version, cfg.Port, cfg.APIPrefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.GRPCPort != "" {
		g.Go(func() error {
			lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
			if err != nil {
				return fmt.Errorf("grpc listen: %w", err)
			}
			log.Printf("[jobsync] gRPC listening on :%s", cfg.GRPCPort)
			return gsrv.Serve(lis)
		})
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Println("[jobsync] Shutting down…")
		hsrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[jobsync] HTTP shutdown error: %v", err)
		}
		gsrv.GracefulStop()
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("[jobsync] %v", err)
	}
	log.Println("[jobsync] Stopped.")
}
