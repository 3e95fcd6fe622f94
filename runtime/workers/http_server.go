package workers

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServerWorker serves the relay's router until the context ends,
// then drains in-flight requests within shutdownTimeout.
type HTTPServerWorker struct {
	log             *slog.Logger
	server          *http.Server
	shutdownTimeout time.Duration
}

func NewHTTPServerWorker(log *slog.Logger, server *http.Server, shutdownTimeout time.Duration) *HTTPServerWorker {
	return &HTTPServerWorker{log: log, server: server, shutdownTimeout: shutdownTimeout}
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.server.Addr)
	if err != nil {
		return err
	}
	return w.Serve(ctx, listener)
}

// Serve is Run on an already bound listener.
func (w *HTTPServerWorker) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		w.log.Info("HTTP server listening", "addr", listener.Addr().String())
		errCh <- w.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if stdErrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.shutdownTimeout)
		defer cancel()
		w.log.Info("Shutting down HTTP server")
		if err := w.server.Shutdown(shutdownCtx); err != nil {
			w.log.Warn("HTTP server shutdown incomplete", "error", err)
			return err
		}
		return nil
	}
}
