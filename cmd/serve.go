package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/desertthunder/audiotap/internal/metrics"
	"github.com/desertthunder/audiotap/internal/server"
	"github.com/desertthunder/audiotap/internal/services"
	"github.com/desertthunder/audiotap/internal/shared"
	"github.com/desertthunder/audiotap/internal/tasks"
)

// Serve runs the HTTP API until SIGINT or SIGTERM, then drains running tasks.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if cmd.IsSet("host") {
		cfg.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}

	if r.config.Logging.File != "" {
		fileLogger, err := shared.NewFileLogger(r.config.Logging.File, r.config.Logging)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		fileLogger.SetLevel(r.logger.GetLevel())
		r.SetLogger(fileLogger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager, release := r.newManager(m)
	defer release()

	var sinks []tasks.Sink
	redisSink, redisClient, err := r.redisSink(ctx, m)
	if err != nil {
		return err
	}
	if redisSink != nil {
		defer redisClient.Close()
		defer redisSink.Close()
		sinks = append(sinks, redisSink)
	}

	var store server.ReportStore
	db, repo, err := r.openArchive()
	if err != nil {
		r.logger.Warn("report archive unavailable, /reports disabled", "err", err)
	}
	if db != nil {
		defer db.Close()
		store = repo
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := max(cfg.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	api := server.NewAPI(server.Options{
		Manager:  manager,
		Store:    store,
		Sinks:    sinks,
		Gatherer: reg,
		Metrics:  m,
		Limiter:  limiter,
		Logger:   r.logger,
	})
	defer api.Hub().Close()
	defer r.shutdown(ctx, manager)

	r.logger.Info("analysis API listening", "addr", cfg.Addr(), "plugins", r.registry.Len())
	srv := server.New(cfg, api.Router(), r.logger)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	r.logger.Info("shutting down, waiting for running tasks")
	return nil
}

// redisSink connects the optional Redis fan-out. Both results are nil when it is disabled.
func (r *Runner) redisSink(ctx context.Context, m *metrics.Metrics) (*services.RedisSink, *redis.Client, error) {
	if !r.config.Redis.Enabled {
		return nil, nil, nil
	}
	client, err := services.NewRedisClient(ctx, r.config.Redis)
	if err != nil {
		return nil, nil, err
	}
	r.logger.Info("publishing updates to redis", "addr", r.config.Redis.Addr, "channel", r.config.Redis.Channel)
	return services.NewRedisSink(client, r.config.Redis.Channel, r.logger, m), client, nil
}
