// Package health serves the liveness, readiness and metrics endpoints shared
// by every job registry service.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Checker reports whether a dependency is usable. A nil Checker is always ready.
type Checker func(ctx context.Context) error

const readyTimeout = 2 * time.Second

// NewMux returns a mux serving /healthz, /readyz and /metrics.
func NewMux(service string, ready Checker) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": service})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := ready(ctx); err != nil {
				log.WithError(err).Warnf("%s not ready", service)
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "service": service, "error": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "service": service})
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// All combines checkers; the first failure wins.
func All(checks ...Checker) Checker {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Serve runs an HTTP server on port until ctx is cancelled, then shuts it
// down, waiting at most shutdownTimeout for in-flight requests.
func Serve(ctx context.Context, port int, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "serving http")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Infof("HTTP server on %s shutting down", srv.Addr)
	return errors.WithStack(srv.Shutdown(shutdownCtx))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
