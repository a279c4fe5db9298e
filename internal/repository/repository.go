package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"kitchen-sync/internal/domain"
)

// OrderReader is the read side every viewer depends on.
type OrderReader interface {
	Get(ctx context.Context, id string) (domain.Order, error)
	// ListActive returns orders not yet COMPLETED, oldest first.
	ListActive(ctx context.Context) ([]domain.Order, error)
}

// StatusWriter is the only mutation path for fulfillment status. The write
// succeeds only if the stored status still equals expected; otherwise it
// returns domain.ErrConflict, or domain.ErrNotFound for an unknown id.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, id string, expected, next domain.Status, changedBy string) error
}

type OrderStore interface {
	OrderReader
	StatusWriter
	Create(ctx context.Context, o domain.NewOrder) (domain.Order, error)
}

// Emitter receives the id of every order whose mutation has committed.
type Emitter interface {
	Emit(orderID string)
}

func encodeItems(items []domain.LineItem) ([]byte, error) {
	if items == nil {
		items = []domain.LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return b, nil
}

func decodeItems(b []byte) ([]domain.LineItem, error) {
	var items []domain.LineItem
	if len(b) == 0 {
		return []domain.LineItem{}, nil
	}
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}
