package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/quenty/webchannel-server-go/internal/delivery"
	"github.com/quenty/webchannel-server-go/internal/model"
)

// CallbackHandler receives asynchronous results from the automation
// pipeline. Unroutable callbacks are an expected drop, so anything with
// parseable JSON gets a 200; the outcome is in the response for the
// pipeline's own bookkeeping.
type CallbackHandler struct {
	coordinator *delivery.Coordinator
}

func NewCallbackHandler(coordinator *delivery.Coordinator) *CallbackHandler {
	return &CallbackHandler{coordinator: coordinator}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var cb model.Callback
	if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
		log.Warn().Err(err).Msg("invalid pipeline callback request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	log.Info().
		Str("event", cb.Event).
		Str("correlationId", cb.CorrelationID).
		Str("message", truncate(cb.Message, 50)).
		Msg("received pipeline callback")

	outcome := h.coordinator.HandleCallback(r.Context(), cb)

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "accepted",
		"outcome": string(outcome),
	})
}
