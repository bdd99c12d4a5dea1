package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/memoraos/neuralmap/internal/engine"
	"go.uber.org/zap"
)

const maxEventBytes = 4 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sceneStatus maps scene errors onto HTTP status codes.
func sceneStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
	}
	if s.db != nil {
		body["db"] = s.db.PingContext(r.Context()) == nil
		body["db_path"] = s.db.Path
	}
	if s.provider != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		body["provider"] = s.provider.Healthy(ctx)
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	f, err := s.scene.Frame(r.Context())
	if err != nil {
		writeError(w, sceneStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev engine.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes)).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	f, err := s.scene.Dispatch(r.Context(), ev)
	if err != nil {
		writeError(w, sceneStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	out, err := s.scene.Refresh(r.Context())
	if err != nil {
		status := sceneStatus(err)
		if status == http.StatusInternalServerError {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": out.String()})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot store configured")
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	snaps, err := s.db.ListSnapshots(limit)
	if err != nil {
		s.log.Error("list snapshots", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"snapshots": snaps,
		"count":     len(snaps),
	})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot store configured")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "snapshotID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid snapshot id")
		return
	}

	cats, err := s.db.SnapshotCategories(id)
	if err != nil {
		s.log.Error("snapshot categories", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(cats) == 0 {
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         id,
		"categories": cats,
	})
}
