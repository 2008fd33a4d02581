package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/quenty/webchannel-server-go/internal/cache"
	"github.com/quenty/webchannel-server-go/internal/httputil"
	"github.com/quenty/webchannel-server-go/internal/model"
	"github.com/quenty/webchannel-server-go/internal/registry"
)

// MessageLister is the slice of the archive the admin surface reads. Nil
// when no data store is configured.
type MessageLister interface {
	ListRecent(ctx context.Context, limit int) ([]model.ArchivedMessage, error)
	ListBySessionID(ctx context.Context, sessionID string, limit int) ([]model.ArchivedMessage, error)
	CountAll(ctx context.Context) (int, error)
}

type AdminHandler struct {
	cache    *cache.Cache
	registry *registry.Registry
	messages MessageLister
}

func NewAdminHandler(contentCache *cache.Cache, reg *registry.Registry, messages MessageLister) *AdminHandler {
	return &AdminHandler{
		cache:    contentCache,
		registry: reg,
		messages: messages,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/cache/invalidate", h.InvalidateCache)
	r.Get("/cache/stats", h.CacheStats)
	r.Get("/sessions", h.ListSessions)
	r.Get("/messages", h.ListMessages)

	return r
}

type invalidateRequest struct {
	Keys   []string `json:"keys,omitempty"`
	Prefix string   `json:"prefix,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

type invalidateResponse struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

func (h *AdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	count, err := h.cache.Invalidate(req.Keys, req.Prefix)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	log.Info().
		Int("count", count).
		Str("prefix", req.Prefix).
		Strs("keys", req.Keys).
		Str("reason", req.Reason).
		Msg("cache invalidated by admin")

	writeJSON(w, http.StatusOK, invalidateResponse{
		Success: true,
		Count:   count,
		Message: fmt.Sprintf("Invalidated %d entries", count),
	})
}

func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.registry.ListInfo()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (h *AdminHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	if h.messages == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"messages": []model.ArchivedMessage{},
			"count":    0,
			"total":    0,
		})
		return
	}

	ctx := r.Context()

	var (
		messages []model.ArchivedMessage
		err      error
	)
	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		messages, err = h.messages.ListBySessionID(ctx, sessionID, 100)
	} else {
		messages, err = h.messages.ListRecent(ctx, 100)
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to list archived messages")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	total, err := h.messages.CountAll(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to count archived messages")
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": messages,
		"count":    len(messages),
		"total":    total,
	})
}
