package order

import (
	"net/http"

	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/order/handlers"
	"kitchen-sync/internal/microservices/order/service"
	"kitchen-sync/internal/repository"
)

// Mount registers order intake on mux.
func Mount(mux *http.ServeMux, store repository.OrderStore) {
	svc := service.NewOrderService(store, logger.New("order-service"))
	handlers.Router(mux, handlers.NewOrderHandler(svc))
}
