package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/utkarsh5026/threadpool/internal/backoff"
	"github.com/utkarsh5026/threadpool/pool"
)

// Executor runs jobs. *pool.ThreadPool satisfies it.
type Executor interface {
	Execute(job pool.Job) error
}

// Observer is told about connections as they are accepted and served.
type Observer interface {
	ConnAccepted()
	ConnServed(route Route, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ConnAccepted()                          {}
func (nopObserver) ConnServed(Route, time.Duration, error) {}

// Server accepts TCP connections and hands each one to Pool, where Handler
// answers it. The server never closes Pool; its owner does.
type Server struct {
	Addr    string
	Pool    Executor
	Handler Handler

	// MaxConns stops the accept loop after that many connections. Zero
	// accepts until the context passed to Serve is cancelled.
	MaxConns int

	// AcceptRetry spaces out retries after temporary accept errors.
	// Defaults to exponential backoff from 5ms to 1s.
	AcceptRetry backoff.Strategy

	Log      zerolog.Logger
	Observer Observer

	accepted atomic.Int64
}

// Accepted returns how many connections have been accepted so far.
func (s *Server) Accepted() int64 {
	return s.accepted.Load()
}

// ListenAndServe listens on Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr, err)
	}
	s.Log.Info().Str("addr", ln.Addr().String()).Msg("listening")
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until MaxConns is reached or ctx is
// cancelled, and returns nil in both cases. ln is closed on return.
// Connections already dispatched keep running on the pool.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.Pool == nil {
		return errors.New("server: nil pool")
	}

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer ln.Close()

	retry := s.AcceptRetry
	if retry == nil {
		retry = backoff.New(backoff.Exponential, 5*time.Millisecond, time.Second, 0)
	}

	attempt := 0
	for s.MaxConns <= 0 || s.accepted.Load() < int64(s.MaxConns) {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.Log.Info().Msg("accept loop stopped")
				return nil
			}
			if !isTemporary(err) {
				return fmt.Errorf("accept: %w", err)
			}

			delay := retry.NextDelay(attempt)
			attempt++
			s.Log.Warn().Err(err).Dur("retry_in", delay).Msg("accept failed")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		attempt = 0
		s.accepted.Add(1)
		s.dispatch(conn)
	}

	s.Log.Info().Int("max_conns", s.MaxConns).Msg("connection limit reached")
	return nil
}

func (s *Server) dispatch(conn net.Conn) {
	obs := s.observer()
	obs.ConnAccepted()

	log := s.Log.With().
		Str("conn", ksuid.New().String()).
		Str("remote", conn.RemoteAddr().String()).
		Logger()
	log.Debug().Msg("connection established")

	err := s.Pool.Execute(pool.JobFunc(func() {
		defer conn.Close()

		start := time.Now()
		route, err := s.Handler.serve(conn)
		elapsed := time.Since(start)
		obs.ConnServed(route, elapsed, err)

		if err != nil {
			log.Error().Err(err).Str("route", string(route)).Msg("connection failed")
			return
		}
		log.Debug().Str("route", string(route)).Dur("elapsed", elapsed).Msg("connection served")
	}))
	if err != nil {
		log.Error().Err(err).Msg("cannot dispatch connection; dropping it")
		_ = conn.Close()
	}
}

func (s *Server) observer() Observer {
	if s.Observer == nil {
		return nopObserver{}
	}
	return s.Observer
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}
