// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package api wires the operational HTTP surface of the ingestion worker.

Architecture:

  - This is not a public API: it serves orchestration probes and on-call
    tooling only.
  - It acts as the composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/worker are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/owarin/serina/internal/dlq"
	"github.com/owarin/serina/internal/gateway"
	"github.com/owarin/serina/internal/platform/config"
	"github.com/owarin/serina/internal/platform/constants"
	"github.com/owarin/serina/internal/platform/respond"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in cmd/worker with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// Dependencies groups the collaborators the ops endpoints act on.
type Dependencies struct {
	// Liveness is the /healthz handler — always 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /readyz handler — 200 when all backing stores are healthy.
	Readiness http.HandlerFunc

	// Monitor serves on-demand dead-letter health evaluation.
	Monitor *dlq.Monitor

	// Gateway serves the breaker reset endpoint for operational recovery.
	Gateway *gateway.Gateway
}

// # Server Initialization

// NewServer constructs the chi router and registers the operational routes.
func NewServer(cfg *config.Config, log *slog.Logger, deps Dependencies) *Server {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/healthz", deps.Liveness)
	r.Get("/readyz", deps.Readiness)

	// # On-Call Tooling
	r.Route("/internal", func(internal chi.Router) {
		internal.Post("/dlq/check", dlqCheckHandler(deps.Monitor))
		internal.Post("/breakers/reset", breakerResetHandler(deps.Gateway, log))
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Handlers

// dlqCheckHandler runs one dead-letter health pass on demand and returns
// whatever alerts it dispatched.
func dlqCheckHandler(monitor *dlq.Monitor) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		alerts := monitor.CheckDLQHealth(request.Context())
		if alerts == nil {
			alerts = []dlq.Alert{}
		}
		respond.OK(writer, map[string]interface{}{"alerts": alerts})
	}
}

// breakerResetHandler force-closes every circuit breaker.
func breakerResetHandler(gw *gateway.Gateway, log *slog.Logger) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		gw.ResetAll()
		log.Info("breakers_reset_via_ops_api")
		respond.OK(writer, map[string]string{"status": "reset"})
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("ops_server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
