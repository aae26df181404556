// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/empytrone/internal/catalog"
	"github.com/ManuGH/empytrone/internal/config"
	"github.com/ManuGH/empytrone/internal/domain/session/manager"
	"github.com/ManuGH/empytrone/internal/eventlog"
	xglog "github.com/ManuGH/empytrone/internal/log"
)

const maxListLimit = 500

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	UptimeMs int64  `json:"uptimeMs"`
}

// SessionResponse is the /api/v1/session body.
type SessionResponse struct {
	Version            string              `json:"version,omitempty"`
	Session            manager.Status      `json:"session"`
	Log                eventlog.Stats      `json:"log"`
	Features           config.FeatureFlags `json:"features"`
	DeepgramKeyPresent bool                `json:"deepgramKeyPresent"`
}

// SessionsResponse is the /api/v1/sessions body.
type SessionsResponse struct {
	Sessions []catalog.Entry `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Version:  s.deps.Version,
		UptimeMs: time.Since(s.started).Milliseconds(),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	cfg := s.deps.Config()
	writeJSON(w, http.StatusOK, SessionResponse{
		Version:            s.deps.Version,
		Session:            s.deps.Sessions.Status(),
		Log:                s.deps.Log.Stats(),
		Features:           cfg.Features,
		DeepgramKeyPresent: cfg.DeepgramKeyPresent(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalog == nil {
		writeNotFound(w, "catalog_disabled")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			writeBadRequest(w, "limit must be between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		limit = n
	}
	entries, err := s.deps.Catalog.List(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Str(xglog.FieldEvent, "api.catalog_failed").Msg("failed to list sessions")
		writeServiceUnavailable(w, err)
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	writeJSON(w, http.StatusOK, SessionsResponse{Sessions: entries})
}
