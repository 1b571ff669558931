// Package server wires the HTTP router and runs the API server.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	appMiddleware "github.com/photoslot/service/internal/middleware"
	"github.com/photoslot/service/internal/photo"
	"github.com/photoslot/service/internal/response"
	"github.com/photoslot/service/internal/widget"

	_ "github.com/photoslot/service/docs/swagger"
)

const shutdownTimeout = 30 * time.Second

// NewRouter builds the HTTP routes. Anything that matches no route, including
// a known path with the wrong method, gets a plain 404.
func NewRouter(logger *slog.Logger, photos *photo.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(appMiddleware.CORS())

	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	// Preflights with an Origin are answered by the CORS middleware; this catches bare OPTIONS.
	r.Options("/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Post("/upload", photos.Upload)
	r.Get("/image", photos.GetImage)
	r.Get("/*", widget.Handler(logger))

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	response.NotFound(w, "Not Found")
}

// Run serves srv until ctx is cancelled, then shuts it down gracefully.
func Run(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
