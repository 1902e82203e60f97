package session

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestPruner_SweepRemovesOnlyExpired(t *testing.T) {
	t.Parallel()

	svc, store := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	live, err := svc.IssueSession(ctx, now, testUser, DeviceMeta{})
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	dead, err := svc.IssueSession(ctx, now, Identity{ID: "u-2", PublicID: "pub-2"}, DeviceMeta{})
	if err != nil {
		t.Fatalf("IssueSession: %v", err)
	}
	store.mu.Lock()
	store.rows[dead.Row.ID].ExpiresAt = now.Add(-time.Hour)
	store.mu.Unlock()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPruner(store, time.Minute, log)
	p.sweep(ctx, now)

	if _, err := store.GetByJTI(ctx, live.JTI); err != nil {
		t.Fatalf("live session pruned: %v", err)
	}
	if _, err := store.GetByJTI(ctx, dead.JTI); err == nil {
		t.Fatalf("expired session survived sweep")
	}
}

func TestPruner_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	_, store := testService(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewPruner(store, time.Millisecond, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("pruner did not stop on cancel")
	}
}
