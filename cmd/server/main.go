package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"donations/internal/ledger"
	"donations/internal/platform/config"
	"donations/internal/platform/httpserver"
	"donations/internal/platform/kafka"
	"donations/internal/platform/logger"
	"donations/internal/platform/metrics"
	"donations/internal/platform/postgres"
	"donations/pkg/platform/audit/outbox"
	auditpostgres "donations/pkg/platform/audit/store/postgres"
)

const shutdownTimeout = 10 * time.Second

// main wires the ledger to PostgreSQL, runs the audit outbox relay and serves
// the ops endpoints. Commands reach the ledger through the request layer that
// embeds it, not through this process's HTTP surface.
func main() {
	if err := run(); err != nil {
		slog.Error("donations server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	svc := ledger.NewPostgres(db, cfg.TxTimeout, ledger.WithLogger(log), ledger.WithMetrics(m))

	checks := map[string]httpserver.Check{
		"postgres": func(ctx context.Context) error { return postgres.Health(ctx, db) },
		"ledger": func(ctx context.Context) error {
			_, err := svc.RecentAudit(ctx, 1)
			return err
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Audit.RelayEnabled() {
		pub, err := kafka.NewPublisher(cfg.Audit.Brokers, cfg.Audit.Topic)
		if err != nil {
			return err
		}
		defer pub.Close()
		if err := pub.EnsureTopic(ctx, cfg.Audit.Partitions, cfg.Audit.Replication); err != nil {
			return err
		}
		checks["kafka"] = pub.Health

		relay := outbox.NewRelay(auditpostgres.New(db), pub,
			outbox.WithLogger(log),
			outbox.WithMetrics(m),
			outbox.WithBatchSize(cfg.Audit.RelayBatch),
			outbox.WithInterval(cfg.Audit.RelayInterval),
			outbox.WithDrainTimeout(cfg.Audit.RelayTimeout),
		)
		g.Go(func() error {
			log.Info("audit relay started", "topic", cfg.Audit.Topic, "brokers", cfg.Audit.Brokers)
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		log.Info("audit relay disabled: no kafka brokers configured")
	}

	srv := httpserver.New(cfg.OpsAddr, httpserver.NewOpsRouter(reg, checks))
	g.Go(func() error {
		log.Info("starting ops server", "addr", cfg.OpsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
