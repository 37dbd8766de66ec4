// Command bqlite-server starts the scheduler and a minimal health-check
// listener. Submitting queries, managing the schema registry, and
// ingesting data all happen through internal/service.Facade in-process
// or via an FFI layer — no REST query surface is exposed here (HTTP/CLI/
// FFI surfaces are explicitly out of scope; only /api/health exists).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bobmcallan/bqlite/internal/app"
	"github.com/bobmcallan/bqlite/internal/common"
)

func main() {
	configPath := os.Getenv("BQLITE_CONFIG")

	a, err := app.NewApp(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	common.PrintBanner(a.Config, a.Logger)
	a.Start()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", healthHandler(a))

	host := a.Config.Server.Host
	port := a.Config.Server.Port
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		a.Logger.Info().Int("port", port).Msg("health listener starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error().Err(err).Msg("health listener failed")
		}
	}()

	a.Logger.Info().Str("url", fmt.Sprintf("http://%s:%d/api/health", host, port)).Msg("bqlite-server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	a.Logger.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("health listener shutdown failed")
	}

	a.Close()
	common.PrintShutdownBanner(a.Logger)
}

func healthHandler(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := a.Facade.SystemStatus(r.Context())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"version":     common.GetFullVersion(),
			"total_slots": status.TotalSlots,
			"available":   status.Available,
			"queued":      status.Queued,
			"running":     status.Running,
			"engines":     status.Engines,
		})
	}
}
