package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"kitchen-sync/internal/common/httpx"
	"kitchen-sync/internal/domain"
	dto "kitchen-sync/internal/microservices/order/domain/dto"
	"kitchen-sync/internal/microservices/order/service"
)

type OrderHandler struct {
	service service.OrderServiceInterface
}

func NewOrderHandler(s service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: s}
}

func Router(mux *http.ServeMux, h *OrderHandler) {
	mux.HandleFunc("POST /api/v1/orders", h.AddOrder)
}

func (oh *OrderHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, fmt.Errorf("%w: invalid JSON body", domain.ErrValidation))
		return
	}

	resp, err := oh.service.AddOrder(r.Context(), req)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}
