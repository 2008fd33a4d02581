package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/quenty/webchannel-server-go/internal/cache"
	"github.com/quenty/webchannel-server-go/internal/model"
)

// Computer is the synchronous side of the pipeline, used by the REST content
// surface. The chat path instead dispatches and waits for a callback.
type Computer interface {
	Compute(ctx context.Context, kind model.ContentKind, tag string) (string, error)
}

// ContentHandler serves computed content over plain HTTP, memoized through
// the cache. Concurrent requests for a cold key share one computation.
type ContentHandler struct {
	cache    *cache.Cache
	computer Computer
}

func NewContentHandler(contentCache *cache.Cache, computer Computer) *ContentHandler {
	return &ContentHandler{
		cache:    contentCache,
		computer: computer,
	}
}

func (h *ContentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	kind := model.ContentKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown content kind"})
		return
	}

	tag := r.URL.Query().Get("tag")
	if tag == "" {
		tag = "default"
	}

	key := model.CacheKey(kind, tag)
	payload, err := h.cache.GetOrCompute(r.Context(), key, func(ctx context.Context) (any, error) {
		return h.computer.Compute(ctx, kind, tag)
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("content computation failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "Content computation failed"})
		return
	}

	content, _ := payload.(string)
	writeJSON(w, http.StatusOK, map[string]any{
		"kind":    kind,
		"tag":     tag,
		"content": content,
	})
}
