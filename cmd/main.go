// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/backend"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/config"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/handler"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/service"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/telemetry"
)

func main() {
	log.SetPrefix("[LEDGER] ")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Tracing and storage ───────────────────────────────────────────
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, cfg.OTelServiceName)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	stores, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	log.Printf("store backend: %s", cfg.StoreBackend)

	// ── 2. Wire up layers ────────────────────────────────────────────────
	opts := service.Options{
		StoreTimeout: cfg.StoreTimeout,
		MaxRetries:   cfg.MaxRetries,
		Location:     loc,
	}
	inbox := service.NewNotificationService(stores.Notifications, opts)
	dispatcher := service.NewDispatcher(inbox, cfg.NotifyTimeout)
	ledger := service.NewLedger(stores, inbox, dispatcher, opts)

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.New(ledger).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down server…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	// Let in-flight notifications land before the store goes away.
	dispatcher.Wait()
	if err := stores.Close(shutdownCtx); err != nil {
		log.Printf("close store: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Printf("flush traces: %v", err)
	}
	log.Println("server stopped")
}
