// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package api serves the running bridge's counters over HTTP and provides a
// client for them.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/Thermoquad/hilbridge/pkg/config"
	"github.com/Thermoquad/hilbridge/pkg/gateway"
	"github.com/Thermoquad/hilbridge/pkg/log"
	"github.com/Thermoquad/hilbridge/pkg/telemetry"
)

// DefaultAddress is used by the client when no address is configured
const DefaultAddress = "127.0.0.1:8420"

const shutdownTimeout = 2 * time.Second

// Source is what the API reports on. *gateway.Gateway implements it.
type Source interface {
	Snapshot() gateway.Snapshot
	Layout() *telemetry.Layout
}

// Health is the /api/health response
type Health struct {
	Status string  `json:"status"`
	Mode   string  `json:"mode"`
	Uptime float64 `json:"uptime_seconds"`
}

type Server struct {
	Router *mux.Router
	source Source
}

func NewServer(source Source) *Server {
	s := &Server{source: source}
	s.configureRouter()
	return s
}

func (s *Server) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	subRouter.HandleFunc("/health", s.handleHealth()).Methods("GET")
	subRouter.HandleFunc("/stats", s.handleStats()).Methods("GET")
	subRouter.HandleFunc("/layout", s.handleLayout()).Methods("GET")
}

// Handler returns the router wrapped with access logging and panic recovery
func (s *Server) Handler() http.Handler {
	logged := handlers.LoggingHandler(log.Writer(log.DebugLevel), s.Router)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(logged)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		Addr:              addr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("Status API listening on http://%s/api", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.source.Snapshot()
		writeJSON(w, Health{Status: "ok", Mode: snap.Mode, Uptime: snap.Uptime})
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.source.Snapshot())
	}
}

func (s *Server) handleLayout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		layout := s.source.Layout()
		if layout == nil {
			http.Error(w, "No offset layout in this mode", http.StatusNotFound)
			return
		}
		writeJSON(w, config.LayoutConfigFor(layout))
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response: %v", err)
	}
}
