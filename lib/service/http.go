// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Server defaults.
const (
	// DefaultWriteTimeout fits a discovery scan of a /23 at the
	// default probe timeout, the slowest request the API serves.
	DefaultWriteTimeout    = 2 * time.Minute
	DefaultShutdownTimeout = 10 * time.Second
)

// ServerConfig configures NewServer.
type ServerConfig struct {
	// Address is the TCP listen address, e.g. "127.0.0.1:8470" or
	// "127.0.0.1:0" for an OS-assigned port.
	Address string

	Handler http.Handler

	// WriteTimeout bounds one response. Zero means
	// DefaultWriteTimeout.
	WriteTimeout time.Duration

	// ShutdownTimeout bounds how long Serve waits for in-flight
	// requests after its context is cancelled. Zero means
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	Logger *slog.Logger
}

// Server serves an HTTP handler on a TCP listener with graceful
// shutdown. The listener is bound by NewServer, so a bad address
// fails startup before anything else runs and Addr is valid
// immediately.
type Server struct {
	server          *http.Server
	listener        net.Listener
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// NewServer validates cfg and binds its listener. The caller must
// call Serve or Close.
func NewServer(cfg ServerConfig) (*Server, error) {
	var problems []error
	if cfg.Address == "" {
		problems = append(problems, errors.New("Address is required"))
	}
	if cfg.Handler == nil {
		problems = append(problems, errors.New("Handler is required"))
	}
	if cfg.Logger == nil {
		problems = append(problems, errors.New("Logger is required"))
	}
	if err := errors.Join(problems...); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	listener, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("service: listening on %s: %w", cfg.Address, err)
	}

	return &Server{
		server: &http.Server{
			Handler:           cfg.Handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       60 * time.Second,
			ErrorLog:          slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelWarn),
		},
		listener:        listener,
		shutdownTimeout: shutdownTimeout,
		logger:          cfg.Logger,
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then stops
// accepting and waits up to the shutdown timeout for in-flight
// requests. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	address := s.listener.Addr().String()
	s.logger.Info("http server listening", "address", address)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := s.server.Serve(s.listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("service: serving %s: %w", address, err)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		s.logger.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("service: shutdown: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		s.logger.Error("http server stopped with error", "error", err)
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

// Close releases the listener of a server that will not be served.
func (s *Server) Close() error {
	return s.listener.Close()
}
