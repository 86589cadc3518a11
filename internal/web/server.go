// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package web exposes the account service over HTTP with JSON bodies
// and bearer-token authentication.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/avatar"
	"github.com/accountd/accountd/internal/observability"
)

// Server serves the account API.
type Server struct {
	addr       string
	service    *auth.Service
	avatars    *avatar.Service
	metrics    *observability.Metrics
	logger     *slog.Logger
	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// Config bundles the Server dependencies. Service is required; Avatars
// and Metrics are optional.
type Config struct {
	Addr    string
	Service *auth.Service
	Avatars *avatar.Service
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// NewServer creates an API server from cfg.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, oops.Code("CONFIG_INVALID").Errorf("auth service is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		addr:    cfg.Addr,
		service: cfg.Service,
		avatars: cfg.Avatars,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}, nil
}

// Handler builds the route table. Exposed so tests can drive the server
// through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/accounts/{id}/verify", s.handleVerifyEmail)

	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/accounts", s.handleList)
	mux.HandleFunc("GET /api/accounts/{id}", s.handleGet)
	mux.HandleFunc("PATCH /api/accounts/{id}", s.handleUpdateProfile)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDelete)
	mux.HandleFunc("PUT /api/accounts/{id}/role", s.handleChangeRole)
	mux.HandleFunc("POST /api/accounts/{id}/unlock", s.handleUnlock)
	mux.HandleFunc("POST /api/accounts/{id}/avatar", s.handleAvatarUpload)

	return mux
}

// Start begins serving the API. It returns an error channel that
// receives any error from the HTTP server after startup; the channel
// is closed on graceful stop.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown api server").Wrap(err)
		}
	}

	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the listen address, or empty if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
