// Copyright 2024-2026 Aiku AI

package engine

import (
	"encoding/json"
	"net/http"
	"time"
)

func (e *Engine) startAdminAPI() {
	addr := e.Config.AdminAPIAddr
	if addr == "" {
		return
	}
	e.admin = &http.Server{
		Addr:         addr,
		Handler:      e.AdminHandler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		e.Log.Info().Str("addr", addr).Msg("Starting admin API")
		if err := e.admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.Log.Error().Err(err).Msg("Admin API error")
		}
	}()
}

// AdminHandler returns the admin API routes.
func (e *Engine) AdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/refresh-cache", e.HandleRefreshCache)
	mux.HandleFunc("/api/permission-failures", e.HandlePermissionFailures)
	return mux
}

// HandleRefreshCache is an HTTP handler for POST /api/refresh-cache. It
// refreshes both caches and reports their sizes.
func (e *Engine) HandleRefreshCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	e.Log.Info().Str("remote_addr", r.RemoteAddr).Msg("Cache refresh requested")

	clients, channels, err := e.RefreshCache(r.Context())
	if err != nil {
		e.Log.Err(err).Msg("Requested cache refresh failed")
		http.Error(w, "refresh failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	e.writeJSON(w, map[string]int{
		"clients":  clients,
		"channels": channels,
	})
}

// HandlePermissionFailures is an HTTP handler for GET
// /api/permission-failures.
func (e *Engine) HandlePermissionFailures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	failures := e.Permissions.Failures()
	if failures == nil {
		failures = []string{}
	}
	e.writeJSON(w, failures)
}

func (e *Engine) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		e.Log.Warn().Err(err).Msg("Failed to write admin API response")
	}
}
