package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/TimeWtr/batch_scheduler"
	"github.com/TimeWtr/batch_scheduler/handler"
	"github.com/TimeWtr/batch_scheduler/jobs"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewServeCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Schedule all jobs in the store and serve the read-only status view",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "status view listen address, empty to disable")
	fs.Int64Var(&cfg.Limiter, "limiter", cfg.Limiter, "max concurrent job executions on this node")
	fs.StringVar(&cfg.Timezone, "timezone", cfg.Timezone, "time zone for cron expressions")
	fs.BoolVar(&cfg.MarkRunning, "mark-running", cfg.MarkRunning, "persist RUNNING before executing a job")
	fs.StringVar(&cfg.NodeName, "node", cfg.NodeName, "node name used in logs, defaults to hostname")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "http shutdown timeout")
	return cmd
}

func serve(ctx context.Context, cfg *Config) error {
	zl, logger, sync, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer sync()

	repo, closer, err := openRepository(ctx, cfg, zl)
	if err != nil {
		logger.Error("failed to open job store", batch_scheduler.Field{Key: "err", Val: err})
		return err
	}
	defer closer.Close()

	registry, err := jobs.NewRegistry(jobs.DefaultDurations())
	if err != nil {
		return err
	}

	loc, _ := time.LoadLocation(cfg.Timezone)
	checker := batch_scheduler.NewPreliminaryChecker(repo, logger,
		batch_scheduler.WithNodeName(cfg.NodeName))
	worker := batch_scheduler.NewWorker(repo, checker, registry, logger,
		batch_scheduler.WithMarkRunning(cfg.MarkRunning))
	scheduler := batch_scheduler.NewSchedulerCore(repo, worker, logger,
		batch_scheduler.WithLimiter(cfg.Limiter),
		batch_scheduler.WithLocation(loc),
		batch_scheduler.WithRegistry(registry))

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return scheduler.Run(ctx)
	})

	if cfg.HTTPAddr != "" {
		srv := &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      handler.NewRouter(repo, logger),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		}
		eg.Go(func() error {
			logger.Info("status view listening", batch_scheduler.Field{Key: "addr", Val: cfg.HTTPAddr})
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = eg.Wait()
	logger.Info("batchd exited", batch_scheduler.Field{Key: "err", Val: err})
	return err
}
