package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"verify-backend/internal/bootstrap"
	"verify-backend/internal/credentials"
	"verify-backend/internal/shared/config"
	"verify-backend/internal/shared/telemetry"
	"verify-backend/internal/subscriptions"
)

// The worker runs periodic maintenance: expiring credential mappings whose
// validity window has passed and closing stale digest subscriptions. Both
// sweeps are idempotent, so overlapping deployments are harmless.
func main() {
	cfg := config.Load()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started interval=%s", cfg.SweepInterval)
	runSweeps(ctx, cfg.SweepInterval, app.CredentialsService, app.SubscriptionsRepo)
	log.Printf("worker stopped")
}

// runSweeps runs one sweep immediately, then one per tick until ctx ends.
func runSweeps(ctx context.Context, interval time.Duration, creds *credentials.Service, subs subscriptions.Repo) {
	sweep(ctx, creds, subs)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, creds, subs)
		}
	}
}

func sweep(ctx context.Context, creds *credentials.Service, subs subscriptions.Repo) {
	expired, err := creds.ExpireDue(ctx)
	if err != nil {
		telemetry.Error("worker.credentials_sweep_failed", map[string]any{"error": err.Error()})
	}

	closed := 0
	if subs != nil {
		closed, err = subs.CloseStale(ctx, time.Now().UTC())
		if err != nil {
			telemetry.Error("worker.subscriptions_sweep_failed", map[string]any{"error": err.Error()})
		}
	}

	telemetry.Info("worker.sweep_completed", map[string]any{
		"credentials_expired":  expired,
		"subscriptions_closed": closed,
	})
}
