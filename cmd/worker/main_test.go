package main

import (
	"context"
	"testing"
	"time"

	"verify-backend/internal/credentials"
	"verify-backend/internal/subscriptions"
)

func TestSweepExpiresCredentialsAndClosesSubscriptions(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	credRepo := credentials.NewMemoryRepo()
	credSvc := &credentials.Service{Repo: credRepo}
	seed := []credentials.Mapping{
		{ID: "m-1", UserID: "u-1", InstitutionName: "IIT Delhi", ValidFrom: now.Add(-48 * time.Hour), ValidUntil: now.Add(-time.Hour), Status: credentials.StatusActive},
		{ID: "m-2", UserID: "u-1", InstitutionName: "NIT Trichy", ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour), Status: credentials.StatusActive},
	}
	for _, m := range seed {
		if err := credRepo.Create(ctx, m); err != nil {
			t.Fatalf("seed mapping: %v", err)
		}
	}

	subRepo := subscriptions.NewMemoryRepo()
	subs := []subscriptions.Subscription{
		{ID: "s-1", UserID: "u-1", Topic: "digest", Status: subscriptions.StatusActive, ExpiresAt: now.Add(-time.Minute)},
		{ID: "s-2", UserID: "u-1", Topic: "digest", Status: subscriptions.StatusActive, ExpiresAt: now.Add(time.Hour)},
	}
	for _, s := range subs {
		if err := subRepo.Create(ctx, s); err != nil {
			t.Fatalf("seed subscription: %v", err)
		}
	}

	sweep(ctx, credSvc, subRepo)

	active, err := credRepo.ActiveForUser(ctx, "u-1", now)
	if err != nil {
		t.Fatalf("active mappings: %v", err)
	}
	if len(active) != 1 || active[0].ID != "m-2" {
		t.Fatalf("expected only m-2 active, got %v", active)
	}

	// The sweep is idempotent: nothing else expires on a second run.
	expired, err := credSvc.ExpireDue(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if expired != 0 {
		t.Fatalf("expected 0 newly expired on second sweep, got %d", expired)
	}
}

func TestRunSweepsStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runSweeps(ctx, 10*time.Millisecond, &credentials.Service{Repo: credentials.NewMemoryRepo()}, subscriptions.NewMemoryRepo())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runSweeps did not stop after cancel")
	}
}
