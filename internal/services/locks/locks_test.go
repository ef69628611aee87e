package locks

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/batchcoord/internal/data/repos/locks"
	"github.com/yungbote/batchcoord/internal/data/repos/testutil"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/clock"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
)

func newService(t *testing.T, clk clock.Clock, expiry time.Duration) (*Service, *bus.Hub) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := locks.NewLockRepo(db, log)
	hub := bus.NewHub(log)
	return New(repo, hub, clk, expiry, log), hub
}

func TestServiceTryAcquireAndRelease(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	svc, hub := newService(t, clk, time.Hour)
	sub := hub.Subscribe(bus.Filter{})
	defer sub.Close()
	ctx := context.Background()

	row, err := svc.TryAcquire(ctx, "/data/shot01/", "nodeA")
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if row.LockingNodeId != "nodeA" {
		t.Fatalf("TryAcquire: expected nodeA, got %v", row.LockingNodeId)
	}
	select {
	case e := <-sub.C:
		lc := e.Payload.(bus.LockChanged)
		if lc.Kind != bus.LockAcquired {
			t.Fatalf("expected LockAcquired event, got %v", lc.Kind)
		}
	default:
		t.Fatalf("expected a LockChanged event on acquire")
	}

	_, err = svc.TryAcquire(ctx, "/data/shot01", "nodeB")
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Status != 409 {
		t.Fatalf("expected 409 conflict from second node, got %v", err)
	}

	err = svc.Release(ctx, "/data/shot01", "nodeB")
	relErr, ok := err.(*apierr.Error)
	if !ok || relErr.Status != 403 {
		t.Fatalf("expected 403 Forbidden releasing as non-owner nodeB (spec.md §6 only allows 400/403 here), got %v", err)
	}
	if err := svc.Release(ctx, "/data/shot01", "nodeA"); err != nil {
		t.Fatalf("Release as owner: %v", err)
	}
}

func TestServiceTryAcquireStaleSteal(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	svc, _ := newService(t, clk, time.Hour)
	ctx := context.Background()

	if _, err := svc.TryAcquire(ctx, "/vol/a", "nodeA"); err != nil {
		t.Fatalf("initial acquire: %v", err)
	}

	clk.Advance(2 * time.Hour)
	row, err := svc.TryAcquire(ctx, "/vol/a", "nodeB")
	if err != nil {
		t.Fatalf("steal acquire: %v", err)
	}
	if row.LockingNodeId != "nodeB" {
		t.Fatalf("expected nodeB to steal the lock, got %v", row.LockingNodeId)
	}

	err = svc.Release(ctx, "/vol/a", "nodeA")
	relErr, ok := err.(*apierr.Error)
	if !ok || relErr.Status != 403 {
		t.Fatalf("expected nodeA's release to fail with 403 Forbidden after steal, got %v", err)
	}
}

func TestServiceResetAll(t *testing.T) {
	clk := clock.NewFixed(time.Now())
	svc, hub := newService(t, clk, time.Hour)
	ctx := context.Background()
	// The test DB is shared by every test in this package, and the stale-steal
	// test leaves its lock held; start from an empty lock table.
	if _, err := svc.ResetAll(ctx); err != nil {
		t.Fatalf("pre-test ResetAll: %v", err)
	}
	sub := hub.Subscribe(bus.Filter{})
	defer sub.Close()

	if _, err := svc.TryAcquire(ctx, "/a", "nodeA"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	<-sub.C // drain the Acquired event

	n, err := svc.ResetAll(ctx)
	if err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	if n != 1 {
		t.Fatalf("ResetAll: expected 1 cleared, got %d", n)
	}
	select {
	case e := <-sub.C:
		lc := e.Payload.(bus.LockChanged)
		if lc.Kind != bus.LockReset {
			t.Fatalf("expected LockReset event, got %v", lc.Kind)
		}
	default:
		t.Fatalf("expected a LockReset event")
	}

	all, err := svc.ListAll(ctx)
	if err != nil || len(all) != 0 {
		t.Fatalf("ListAll after reset: len=%d err=%v", len(all), err)
	}
}
