// Package server implements the TCP server loop (C5): it accepts
// connections, admits them through a per-IP rate limiter, and dispatches
// each to the repository engine through the wire codec on a worker pool.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"miniblob/pkg/config"
	"miniblob/pkg/helper/errors"
	"miniblob/pkg/helper/log"
	"miniblob/pkg/repo"
	"miniblob/pkg/wire"
)

// Server binds a single TCP listener and hands accepted connections off
// to a worker pool, per spec.md §4.5.
type Server struct {
	cfg    *config.Config
	repo   *repo.Repository
	logger log.Logger

	pool    *Pool
	limiter *ConnLimiter

	mu       sync.Mutex
	running  bool
	listener net.Listener
}

// New builds a Server for cfg and r. It does not bind a listener until
// Start is called.
func New(cfg *config.Config, r *repo.Repository, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewLogger()
	}

	workers := cfg.Workers.ServeWorkers
	if workers <= 0 && cfg.Workers.AutoDetect {
		workers = config.GetOptimalWorkerCount()
		logger.WithField("workers", workers).Info("auto-detected worker count")
	}
	if workers <= 0 {
		workers = 1
	}

	return &Server{
		cfg:     cfg,
		repo:    r,
		logger:  logger,
		pool:    NewPool(PoolOptions{Workers: workers, Logger: logger, QueueSize: 128}),
		limiter: NewConnLimiter(cfg.Server.MaxConnRate, cfg.Server.RateWindow),
	}
}

// Start binds the TCP listener and runs the accept loop. It blocks until
// Stop is called or the listener fails, returning nil on a clean
// shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Server.Port))
	if err != nil {
		return errors.Wrap(err, "failed to bind listener")
	}

	s.mu.Lock()
	s.listener = ln
	s.running = true
	s.mu.Unlock()

	s.pool.Start()
	s.logger.WithField("addr", ln.Addr().String()).Info("accepting connections")

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				return nil
			}
			s.logger.WithError(err).Warn("accept failed")
			continue
		}

		if !s.limiter.Allow(conn.RemoteAddr()) {
			rejectRateLimited(conn, s.logger)
			continue
		}

		s.pool.Submit(conn, func(ctx context.Context, c net.Conn) {
			handleConnection(ctx, c, s.repo, s.logger, s.cfg.Server.ReadTimeout, s.cfg.Server.WriteTimeout)
		})
	}
}

// Stop clears the running flag, stops accepting new connections, and
// joins outstanding workers, per spec.md §4.5. It bounds the join on the
// configured shutdown timeout so a stuck handler cannot hang the process
// indefinitely.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		if err := ln.Close(); err != nil {
			s.logger.WithError(err).Warn("error closing listener")
		}
	}

	s.limiter.Stop()

	done := make(chan struct{})
	go func() {
		s.pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.Server.ShutdownTimeout):
		s.logger.Warn("shutdown timeout exceeded, some handlers may still be running")
	}

	s.logger.Info("server stopped")
	return nil
}

// rejectRateLimited writes a best-effort failure response and closes conn,
// per SPEC_FULL.md §3's "throttled connections receive a success=false
// response ... and are closed, never silently dropped." The request type
// passed to WriteResponse is irrelevant here since a success=false
// response carries no type-specific payload.
func rejectRateLimited(conn net.Conn, logger log.Logger) {
	defer conn.Close()
	resp := wire.Response{Success: false, Message: "rate limit exceeded"}
	if err := wire.WriteResponse(conn, wire.GetLatest, resp); err != nil {
		logger.WithError(err).Warn("failed to write rate-limit response")
	}
}
