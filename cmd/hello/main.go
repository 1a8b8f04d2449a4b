// Command hello serves hello.html over raw TCP, answering every connection
// on a fixed-size thread pool.
//
//	hello -workers 4 -addr 127.0.0.1:7878
//	curl http://127.0.0.1:7878/        # 200 + hello.html
//	curl http://127.0.0.1:7878/sleep   # same, after -sleep
//	curl http://127.0.0.1:7878/other   # 404 + 404.html
//
// The server stops on SIGINT/SIGTERM or, with -max-conns, after that many
// connections. Jobs already accepted by the pool finish before exit.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/threadpool/internal/admin"
	"github.com/utkarsh5026/threadpool/internal/config"
	"github.com/utkarsh5026/threadpool/internal/metrics"
	"github.com/utkarsh5026/threadpool/internal/server"
	"github.com/utkarsh5026/threadpool/pool"
	"github.com/utkarsh5026/threadpool/static"
)

const (
	metricsNamespace = "hello"
	drainTimeout     = 30 * time.Second
	adminStopTimeout = 5 * time.Second
)

func main() {
	cfg, err := config.Load(flag.NewFlagSet("hello", flag.ExitOnError), os.Args[1:], ".env")
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Logger = newLogger(cfg.Log.JSON, cfg.Log.ZerologLevel())

	if err := run(cfg, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func newLogger(json bool, level zerolog.Level) zerolog.Logger {
	var l zerolog.Logger
	if json {
		l = zerolog.New(os.Stderr)
	} else {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	return l.Level(level).With().Timestamp().Logger()
}

func run(cfg config.Config, logger zerolog.Logger) error {
	printBanner(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m, err := metrics.New(reg, metricsNamespace)
	if err != nil {
		return err
	}

	opts := []pool.Option{
		pool.WithLogger(logger.With().Str("component", "pool").Logger()),
		pool.WithQueueCapacity(cfg.Pool.QueueCapacity),
	}
	if cfg.Pool.LockThreads {
		opts = append(opts, pool.WithLockedThreads(false))
	}
	opts = append(opts, m.PoolOptions()...)

	p, err := pool.New(cfg.Pool.Workers, opts...)
	if err != nil {
		return err
	}
	if err := metrics.RegisterPool(reg, metricsNamespace, p); err != nil {
		return errors.Join(err, p.Close())
	}

	srv := &server.Server{
		Addr: cfg.Server.Addr,
		Pool: p,
		Handler: server.Handler{
			FS:         pages(cfg.Server.Root),
			Sleep:      cfg.Server.Sleep,
			BufferSize: cfg.Server.BufferSize,
		},
		MaxConns: cfg.Server.MaxConns,
		Log:      logger.With().Str("component", "server").Logger(),
		Observer: m,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// reaching MaxConns ends the run as a signal would
		defer cancel()
		return srv.ListenAndServe(gctx)
	})

	if cfg.Admin.Addr != "" {
		adm := admin.New(cfg.Admin.Addr, p, reg, logger.With().Str("component", "admin").Logger())
		g.Go(adm.Start)
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancelStop := context.WithTimeout(context.Background(), adminStopTimeout)
			defer cancelStop()
			return adm.Stop(stopCtx)
		})
	}

	serveErr := g.Wait()

	logger.Info().Msg("shutting down")
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	poolErr := p.Shutdown(drainCtx)

	printSummary(srv.Accepted(), p.Stats(), poolErr)
	return errors.Join(serveErr, poolErr)
}

func pages(root string) fs.FS {
	if root == "" {
		return static.FS
	}
	return os.DirFS(root)
}
