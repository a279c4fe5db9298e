package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

type Server struct{ *http.Server }

// New builds a server without a write timeout: the SSE streams are long-lived.
func New(addr string, h http.Handler) *Server {
	return &Server{Server: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
}

// Run serves until ctx ends. Request contexts derive from ctx so that
// streaming handlers return before Shutdown waits on them.
func (s *Server) Run(ctx context.Context) error {
	s.BaseContext = func(net.Listener) context.Context { return ctx }
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe() }()
	select {
	case <-ctx.Done():
		ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx2)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
