package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/broadcast"
	"github.com/gin-contrib/sse"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// StreamHandler serves a store's stock feed as server-sent events. The
// subscription lives as long as the connection; nothing is replayed.
type StreamHandler struct {
	Hub       *broadcast.Hub
	Heartbeat time.Duration
	Log       *zap.Logger
}

func (h *StreamHandler) Register(r chi.Router) {
	r.Get("/stores/{storeId}/stream", h.stream)
}

func (h *StreamHandler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}
	storeID := chi.URLParam(r, "storeId")
	sub := h.Hub.Join(storeID)
	defer sub.Leave()

	w.Header().Set("Content-Type", sse.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = sse.Encode(w, sse.Event{Event: "ready", Data: map[string]string{"storeId": storeID}})
	flusher.Flush()

	hb := h.Heartbeat
	if hb <= 0 {
		hb = 25 * time.Second
	}
	tick := time.NewTicker(hb)
	defer tick.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			if err := sse.Encode(w, sse.Event{Event: "ping", Data: time.Now().UTC().Format(time.RFC3339)}); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := sse.Encode(w, sse.Event{Event: broadcast.EventName, Id: ev.ID, Data: ev}); err != nil {
				h.Log.Debug("stream write failed", zap.String("store_id", storeID), zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}
