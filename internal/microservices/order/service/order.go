package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/domain"
	dto "kitchen-sync/internal/microservices/order/domain/dto"
	"kitchen-sync/internal/repository"
)

type OrderServiceInterface interface {
	AddOrder(ctx context.Context, req dto.CreateOrderRequest) (dto.CreateOrderResponse, error)
}

// OrderService places orders so the kitchen has something to work on.
type OrderService struct {
	store repository.OrderStore
	log   *logger.Logger
	now   func() time.Time
}

func NewOrderService(store repository.OrderStore, lg *logger.Logger) *OrderService {
	return &OrderService{store: store, log: lg, now: time.Now}
}

func (s *OrderService) AddOrder(ctx context.Context, req dto.CreateOrderRequest) (dto.CreateOrderResponse, error) {
	if req.OrderNumber != nil && *req.OrderNumber <= 0 {
		return dto.CreateOrderResponse{}, fmt.Errorf("%w: order number must be positive", domain.ErrValidation)
	}
	n := domain.NewOrder{
		OrderNumber:  req.OrderNumber,
		CustomerName: strings.TrimSpace(req.CustomerName),
		CreatedAt:    s.now().UTC(),
		Items:        dto.ConvertItems(req.Items),
	}
	o, err := s.store.Create(ctx, n)
	if err != nil {
		return dto.CreateOrderResponse{}, err
	}
	s.log.Info("order_received", map[string]any{"order_id": o.ID, "items": len(o.Items)})
	return dto.CreateOrderResponse{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		CreatedAt:   o.CreatedAt,
	}, nil
}
