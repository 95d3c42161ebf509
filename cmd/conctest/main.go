// conctest fires concurrent reservations at one event on the configured
// backend and reports whether the ledger overbooked it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/apperr"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/backend"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/config"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/model"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/repository"
	"github.com/Shivanand-hulikatti/event-engagement-ledger/internal/service"
)

func main() {
	log.SetPrefix("[CONCTEST] ")
	capacity := flag.Int("capacity", 1, "event capacity")
	users := flag.Int("users", 50, "concurrent reservers")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()
	stores, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	fmt.Printf("Backend  : %s\n", cfg.StoreBackend)
	passed, err := run(ctx, stores, cfg, *capacity, *users)
	// Close before exiting so a FAIL run still releases the pool or client.
	if cerr := stores.Close(ctx); cerr != nil {
		log.Printf("close store: %v", cerr)
	}
	if err != nil {
		log.Fatalf("conctest: %v", err)
	}
	if !passed {
		os.Exit(1)
	}
}

// run creates a capacity-limited event, reserves it from users goroutines at
// once and reports whether the ledger booked exactly min(capacity, users).
func run(ctx context.Context, stores repository.Stores, cfg config.Config, capacity, users int) (bool, error) {
	ledger := service.NewLedger(stores, nil, nil, service.Options{
		StoreTimeout: cfg.StoreTimeout,
		MaxRetries:   cfg.MaxRetries,
	})

	event, err := ledger.CreateEvent(ctx, "conctest-host", model.CreateEventRequest{
		Title:       fmt.Sprintf("Capacity-%d stress test", capacity),
		Capacity:    capacity,
		ScheduledAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		return false, fmt.Errorf("create event: %w", err)
	}

	fmt.Println("═══════════════════════════════════════════")
	fmt.Println("  Engagement ledger: concurrency stress test")
	fmt.Println("═══════════════════════════════════════════")
	fmt.Printf("Event ID : %s\n", event.ID)
	fmt.Printf("Capacity : %d\n\n", event.Capacity)

	results := simulate(ctx, ledger, event.ID, users)

	var booked, full, other int
	for _, r := range results {
		switch {
		case r.Success:
			booked++
		case errors.Is(r.Error, apperr.ErrCapacityFull):
			full++
		default:
			other++
			fmt.Printf("  %s  FAILED  (%v)\n", r.UserID, r.Error)
		}
	}

	snap, err := ledger.CapacitySnapshot(ctx, event.ID)
	if err != nil {
		return false, fmt.Errorf("snapshot: %w", err)
	}
	active, err := ledger.EventReservations(ctx, event.ID)
	if err != nil {
		return false, fmt.Errorf("list reservations: %w", err)
	}

	fmt.Println("Total attempts     :", users)
	fmt.Println("Successful bookings:", booked)
	fmt.Println("Rejected as full   :", full)
	fmt.Println("Other failures     :", other)
	fmt.Printf("Final state        : attendee_count=%d active_reservations=%d\n", snap.AttendeeCount, len(active))

	want := min(capacity, users)
	if booked == want && snap.AttendeeCount == want && len(active) == want {
		fmt.Printf("\nPASS: exactly %d bookings, no overbooking\n", want)
		return true, nil
	}
	fmt.Printf("\nFAIL: expected %d bookings, got %d (count %d, active %d)\n", want, booked, snap.AttendeeCount, len(active))
	return false, nil
}

// simulate reserves one spot per synthetic user, all at once.
func simulate(ctx context.Context, ledger *service.Ledger, eventID string, users int) []model.ReservationResult {
	var (
		mu      sync.Mutex
		results = make([]model.ReservationResult, 0, users)
		start   = make(chan struct{})
		g       errgroup.Group
	)
	for i := 0; i < users; i++ {
		userID := fmt.Sprintf("user-%03d", i+1)
		g.Go(func() error {
			<-start
			_, err := ledger.Reserve(ctx, userID, eventID)
			mu.Lock()
			results = append(results, model.ReservationResult{UserID: userID, Success: err == nil, Error: err})
			mu.Unlock()
			return nil
		})
	}
	began := time.Now()
	close(start)
	_ = g.Wait()
	fmt.Printf("Time taken         : %s\n", time.Since(began))
	return results
}
