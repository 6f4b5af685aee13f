package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stemsync/internal/annotation"
	"stemsync/internal/platform/config"
	"stemsync/internal/platform/logger"
	"stemsync/internal/platform/metrics"
	"stemsync/internal/session"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.FromEnv()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or the listener fails. Deferred
// cleanup always runs before it returns.
func run(ctx context.Context, cfg config.Settings) error {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	var comments annotation.Store
	switch cfg.StoreDriver {
	case "sqlite":
		st, err := annotation.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open comment store %s: %w", cfg.SQLitePath, err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				log.Error("close comment store", "error", err)
			}
		}()
		comments = st
	case "memory":
		comments = annotation.NewMemoryStore()
	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	met := metrics.New()
	repo := session.NewInMemoryRepository()
	svc := session.NewService(repo, session.Options{
		DriftThreshold: cfg.DriftThreshold.Seconds(),
		TickInterval:   cfg.TickInterval,
		LoadDelay:      cfg.LoadDelay,
		Comments:       comments,
		Observer:       met,
		Logger:         log,
	})
	defer svc.Close()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: newRouter(session.NewHandler(svc, log, met), met, repo, log)}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"drift_threshold_ms", cfg.DriftThreshold.Milliseconds(),
		"tick_interval_ms", cfg.TickInterval.Milliseconds(),
		"store_driver", cfg.StoreDriver,
		"log_level", cfg.LogLevel,
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func newRouter(h *session.Handler, met *metrics.Metrics, repo session.Repository, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(repo.ActiveCount()) }).ServeHTTP(w, r)
	})
	r.Post("/sessions", h.Mount)
	r.Route("/sessions/{media_id}", func(r chi.Router) {
		r.Get("/", h.GetState)
		r.Delete("/", h.Unmount)
		r.Post("/play", h.Play)
		r.Post("/pause", h.Pause)
		r.Post("/seek", h.Seek)
		r.Put("/role/{role}", h.SelectRole)
		r.Get("/events", h.Events)
		r.Route("/comments", func(r chi.Router) {
			r.Get("/", h.ListComments)
			r.Post("/", h.AddComment)
			r.Post("/{comment_id}/activate", h.ActivateComment)
		})
	})
	return r
}
