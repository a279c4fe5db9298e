package tracker

import (
	"net/http"

	"kitchen-sync/internal/broadcast"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/tracker/handler"
	"kitchen-sync/internal/repository"
	"kitchen-sync/internal/tracking"
)

// Mount registers the customer tracking endpoints on mux.
func Mount(mux *http.ServeMux, store repository.OrderReader, hub *broadcast.Broadcaster, opts tracking.Options, sink handler.AlertSink) {
	lg := logger.New("tracking-service")
	handler.Router(mux, handler.NewTrackerHandler(store, hub, opts, sink, lg))
}
