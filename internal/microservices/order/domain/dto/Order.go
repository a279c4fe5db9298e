package dto

import (
	"strings"

	"kitchen-sync/internal/domain"
)

type CreateOrderRequest struct {
	OrderNumber  *int             `json:"order_number"`
	CustomerName string           `json:"customer_name"`
	Items        []OrderItemInput `json:"items"`
}

type CreateOrderResponse struct {
	OrderID     string        `json:"order_id"`
	OrderNumber *int          `json:"order_number"`
	Status      domain.Status `json:"status"`
	CreatedAt   int64         `json:"created_at"`
}

type OrderItemInput struct {
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	Modifiers []string `json:"modifiers"`
}

// ConvertItems maps input items to line items, dropping blank modifiers.
func ConvertItems(inputs []OrderItemInput) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(inputs))
	for _, in := range inputs {
		var mods []string
		for _, m := range in.Modifiers {
			if m = strings.TrimSpace(m); m != "" {
				mods = append(mods, m)
			}
		}
		items = append(items, domain.LineItem{
			Name:      strings.TrimSpace(in.Name),
			Quantity:  in.Quantity,
			Modifiers: mods,
		})
	}
	return items
}
