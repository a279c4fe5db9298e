package kitchen

import (
	"net/http"

	"kitchen-sync/internal/board"
	"kitchen-sync/internal/broadcast"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/kitchen/handler"
	"kitchen-sync/internal/microservices/kitchen/service"
	"kitchen-sync/internal/repository"
)

// Mount registers the kitchen terminal and board endpoints on mux.
func Mount(mux *http.ServeMux, store repository.OrderStore, hub *broadcast.Broadcaster, opts board.Options, terminal string) {
	lg := logger.New("kitchen-service")
	svc := service.NewTerminalService(store, terminal, lg)
	handler.Router(mux, handler.NewKitchenHandler(svc, store, hub, opts, lg))
}
