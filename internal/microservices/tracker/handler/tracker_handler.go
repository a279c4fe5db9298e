package handler

import (
	"context"
	"net/http"
	"time"

	"kitchen-sync/internal/broadcast"
	"kitchen-sync/internal/common/httpx"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/ready"
	"kitchen-sync/internal/repository"
	"kitchen-sync/internal/tracking"
)

// AlertSink forwards ready alerts to hosts outside the stream.
type AlertSink interface {
	Publish(ctx context.Context, a ready.Alert) error
}

type TrackerHandler struct {
	store repository.OrderReader
	hub   *broadcast.Broadcaster
	opts  tracking.Options
	sink  AlertSink
	log   *logger.Logger
}

// NewTrackerHandler builds the customer tracking endpoints. sink may be nil.
func NewTrackerHandler(store repository.OrderReader, hub *broadcast.Broadcaster, opts tracking.Options, sink AlertSink, lg *logger.Logger) *TrackerHandler {
	return &TrackerHandler{store: store, hub: hub, opts: opts, sink: sink, log: lg}
}

func Router(mux *http.ServeMux, h *TrackerHandler) {
	mux.HandleFunc("GET /api/v1/tracking/orders/{order_id}/status", h.GetStatus)
	mux.HandleFunc("GET /api/v1/tracking/orders/{order_id}/stream", h.Stream)
}

func (h *TrackerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.fetchTimeout())
	defer cancel()

	o, err := h.store.Get(ctx, r.PathValue("order_id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"order_id":      o.ID,
		"order_number":  o.OrderNumber,
		"customer_name": o.CustomerName,
		"status":        o.Status,
		"created_at":    o.CreatedAt,
	})
}

type readyEvent struct {
	OrderID string  `json:"order_id"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	Vibrate []int64 `json:"vibrate_ms"`
}

func millis(pattern []time.Duration) []int64 {
	out := make([]int64, len(pattern))
	for i, d := range pattern {
		out[i] = d.Milliseconds()
	}
	return out
}

// Stream sends a "state" event after every refetch and one "ready" event when
// the order moves into READY while the customer is watching.
func (h *TrackerHandler) Stream(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("order_id")
	stream, err := httpx.NewStream(w)
	if err != nil {
		httpx.WriteProblem(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.hub.Attach(broadcast.OrderScope(orderID))
	defer sub.Close()

	lg := h.log.With(map[string]any{"viewer_id": sub.ID(), "order_id": orderID})
	lg.Info("tracker_viewer_attached", nil)
	defer lg.Info("tracker_viewer_detached", nil)

	surface := ready.Funcs{
		Alert: func(title, body string) error {
			if err := stream.Event("ready", readyEvent{OrderID: orderID, Title: title, Body: body, Vibrate: millis(ready.VibratePattern)}); err != nil {
				cancel()
				return err
			}
			if h.sink == nil {
				return nil
			}
			return h.sink.Publish(ctx, ready.Alert{OrderID: orderID, ViewerID: sub.ID(), Title: title, Body: body})
		},
	}
	dispatcher := ready.NewDispatcher(sub.ID(), surface, lg)
	tr := tracking.New(orderID, h.store, dispatcher, h.opts, lg)

	_ = tr.Run(ctx, sub.C(), func(s tracking.Snapshot) {
		if err := stream.Event("state", s); err != nil {
			cancel()
		}
	})
}

func (h *TrackerHandler) fetchTimeout() time.Duration {
	if h.opts.FetchTimeout > 0 {
		return h.opts.FetchTimeout
	}
	return 3 * time.Second
}
