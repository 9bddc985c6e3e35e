// Package server wires the chi router, middleware, and admin listener
// together and runs them until the context is cancelled.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gbif/mvt-tile-server/internal/assembler"
	"github.com/gbif/mvt-tile-server/internal/core/config"
	"github.com/gbif/mvt-tile-server/internal/core/health"
	middleware "github.com/gbif/mvt-tile-server/internal/core/middleware"
	"github.com/gbif/mvt-tile-server/internal/core/router"
)

// Run starts the main tile-serving listener and, if configured, a
// second admin listener carrying only /healthz, /readyz and /metrics
// — the Dropwizard admin-port convention spec §6 calls out.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, asm *assembler.Assembler, ready health.ReadinessReporter) error {
	h := router.New(asm, cfg, logger)
	main := mainRouter(cfg, logger, h)

	errCh := make(chan error, 2)
	mainSrv := listen(ctx, "main", cfg.Addr, main, logger, errCh)

	var adminSrv *http.Server
	if cfg.AdminAddr != "" {
		admin := adminRouter(ready)
		adminSrv = listen(ctx, "admin", cfg.AdminAddr, admin, logger, errCh)
	} else {
		mountAdmin(main, ready)
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mainSrv.Shutdown(shutdownCtx)
		if adminSrv != nil {
			_ = adminSrv.Shutdown(shutdownCtx)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func mainRouter(cfg config.Config, logger *slog.Logger, h *router.Handlers) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/occurrence/density/{z}/{x}/{y}.mvt", h.Density())
	r.Get("/occurrence/adhoc/{z}/{x}/{y}.mvt", h.Adhoc())
	r.Get("/occurrence/regression/{z}/{x}/{y}.mvt", h.Regression())
	r.Get("/occurrence/regression", h.RegressionJSON())
	return r
}

func adminRouter(ready health.ReadinessReporter) chi.Router {
	r := chi.NewRouter()
	mountAdmin(r, ready)
	return r
}

func mountAdmin(r chi.Router, ready health.ReadinessReporter) {
	r.Get("/healthz", health.Liveness())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	if ready != nil {
		r.Get("/readyz", health.Readiness(ready))
	}
}

func listen(ctx context.Context, name, addr string, handler http.Handler, logger *slog.Logger, errCh chan<- error) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("http listen", "listener", name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return srv
}
