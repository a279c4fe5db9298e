package service

import (
	"context"
	"errors"
	"fmt"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/domain"
	"kitchen-sync/internal/repository"
)

type TerminalServiceInterface interface {
	Bump(ctx context.Context, orderID string, expected *domain.Status) (Result, error)
	FastComplete(ctx context.Context, orderID string, expected *domain.Status) (Result, error)
}

// Result describes one applied status change.
type Result struct {
	OrderID string        `json:"order_id"`
	From    domain.Status `json:"old_status"`
	To      domain.Status `json:"new_status"`
}

// TerminalService runs kitchen terminal actions. The status a terminal
// displayed is passed as expected; without it the current stored status is
// read first.
type TerminalService struct {
	store repository.OrderStore
	name  string
	log   *logger.Logger
}

func NewTerminalService(store repository.OrderStore, terminal string, lg *logger.Logger) *TerminalService {
	return &TerminalService{
		store: store,
		name:  terminal,
		log:   lg.With(map[string]any{"terminal": terminal}),
	}
}

func (s *TerminalService) Bump(ctx context.Context, orderID string, expected *domain.Status) (Result, error) {
	return s.apply(ctx, orderID, expected, domain.ActionBump)
}

func (s *TerminalService) FastComplete(ctx context.Context, orderID string, expected *domain.Status) (Result, error) {
	return s.apply(ctx, orderID, expected, domain.ActionFastComplete)
}

func (s *TerminalService) apply(ctx context.Context, orderID string, expected *domain.Status, action domain.Action) (Result, error) {
	fields := map[string]any{"order_id": orderID, "terminal_action": string(action)}

	var from domain.Status
	if expected != nil {
		from = *expected
	} else {
		o, err := s.store.Get(ctx, orderID)
		if err != nil {
			return Result{}, fmt.Errorf("%s %s: %w", action, orderID, err)
		}
		from = o.Status
	}

	to, err := domain.Advance(from, action)
	if err != nil {
		s.log.Warn("terminal_action_rejected", err, fields)
		return Result{}, err
	}

	if err := s.store.UpdateStatus(ctx, orderID, from, to, s.name); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			fields["expected_status"] = string(from)
			s.log.Info("terminal_action_conflict", fields)
		}
		return Result{}, fmt.Errorf("%s %s: %w", action, orderID, err)
	}

	fields["old_status"], fields["new_status"] = string(from), string(to)
	s.log.Info("order_status_changed", fields)
	return Result{OrderID: orderID, From: from, To: to}, nil
}
