package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"kitchen-sync/internal/board"
	"kitchen-sync/internal/broadcast"
	"kitchen-sync/internal/common/httpx"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/domain"
	"kitchen-sync/internal/microservices/kitchen/service"
	"kitchen-sync/internal/repository"
)

type KitchenHandler struct {
	terminal service.TerminalServiceInterface
	store    repository.OrderReader
	hub      *broadcast.Broadcaster
	opts     board.Options
	log      *logger.Logger
}

func NewKitchenHandler(terminal service.TerminalServiceInterface, store repository.OrderReader, hub *broadcast.Broadcaster, opts board.Options, lg *logger.Logger) *KitchenHandler {
	return &KitchenHandler{terminal: terminal, store: store, hub: hub, opts: opts, log: lg}
}

func Router(mux *http.ServeMux, h *KitchenHandler) {
	mux.HandleFunc("POST /api/v1/kitchen/orders/{order_id}/bump", h.Bump)
	mux.HandleFunc("POST /api/v1/kitchen/orders/{order_id}/complete", h.Complete)
	mux.HandleFunc("GET /api/v1/kitchen/board", h.Board)
	mux.HandleFunc("GET /api/v1/kitchen/board/stream", h.BoardStream)
}

type actionRequest struct {
	ExpectedStatus string `json:"expected_status"`
}

func (h *KitchenHandler) Bump(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.terminal.Bump)
}

func (h *KitchenHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.terminal.FastComplete)
}

type actionFunc func(ctx context.Context, orderID string, expected *domain.Status) (service.Result, error)

func (h *KitchenHandler) act(w http.ResponseWriter, r *http.Request, do actionFunc) {
	expected, err := decodeExpected(r.Body)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	res, err := do(r.Context(), r.PathValue("order_id"), expected)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// decodeExpected reads the optional body. An empty body means "use the
// stored status".
func decodeExpected(body io.Reader) (*domain.Status, error) {
	var req actionRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: invalid JSON body", domain.ErrValidation)
	}
	if req.ExpectedStatus == "" {
		return nil, nil
	}
	s, err := domain.ParseStatus(req.ExpectedStatus)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (h *KitchenHandler) Board(w http.ResponseWriter, r *http.Request) {
	bv := board.New(h.store, h.opts, h.log)
	bv.Refresh(r.Context())
	v := bv.View()
	if !v.Loaded {
		httpx.WriteProblem(w, http.StatusServiceUnavailable, "syncing", "active orders could not be fetched")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

// BoardStream sends a "board" event with the whole view after every refetch
// and every urgency tick.
func (h *KitchenHandler) BoardStream(w http.ResponseWriter, r *http.Request) {
	stream, err := httpx.NewStream(w)
	if err != nil {
		httpx.WriteProblem(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.hub.Attach(broadcast.ActiveScope())
	defer sub.Close()

	lg := h.log.With(map[string]any{"viewer_id": sub.ID()})
	lg.Info("board_viewer_attached", nil)
	defer lg.Info("board_viewer_detached", nil)

	bv := board.New(h.store, h.opts, lg)
	_ = bv.Run(ctx, sub.C(), func(v board.View) {
		if err := stream.Event("board", v); err != nil {
			cancel()
		}
	})
}
