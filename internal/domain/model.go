package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the fulfillment status of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReady      Status = "READY"
	StatusCompleted  Status = "COMPLETED"
)

// Rank orders statuses along the fulfillment path. Unknown statuses rank 0.
func (s Status) Rank() int {
	switch s {
	case StatusPending:
		return 1
	case StatusInProgress:
		return 2
	case StatusReady:
		return 3
	case StatusCompleted:
		return 4
	default:
		return 0
	}
}

func (s Status) Valid() bool { return s.Rank() > 0 }

func (s Status) Terminal() bool { return s == StatusCompleted }

// ParseStatus accepts the canonical names case-insensitively.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, v)
	}
	return s, nil
}

type Order struct {
	ID           string     `json:"id"`
	OrderNumber  *int       `json:"order_number"`
	CustomerName string     `json:"customer_name,omitempty"`
	Status       Status     `json:"status"`
	CreatedAt    int64      `json:"created_at"` // epoch millis
	Items        []LineItem `json:"items"`
}

// CreatedTime converts CreatedAt to a time.Time.
func (o Order) CreatedTime() time.Time { return time.UnixMilli(o.CreatedAt) }

type LineItem struct {
	Quantity  int      `json:"quantity"`
	Name      string   `json:"name"`
	Modifiers []string `json:"modifiers,omitempty"`
}

// NewOrder is what a store adapter needs to place an order.
type NewOrder struct {
	OrderNumber  *int
	CustomerName string
	CreatedAt    time.Time
	Items        []LineItem
}

func (n NewOrder) Validate() error {
	if len(n.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for _, it := range n.Items {
		if strings.TrimSpace(it.Name) == "" {
			return fmt.Errorf("%w: item name is required", ErrValidation)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: invalid quantity for item %s", ErrValidation, it.Name)
		}
	}
	return nil
}
