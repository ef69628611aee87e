package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/batchcoord/internal/data/repos/locks"
	"github.com/yungbote/batchcoord/internal/data/repos/nodes"
	"github.com/yungbote/batchcoord/internal/data/repos/testutil"
	"github.com/yungbote/batchcoord/internal/platform/clock"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
)

func TestTickMarksStaleHeartbeatsAndExpiresStaleLocks(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	nodeRepo := nodes.NewNodeRepo(db, log)
	lockRepo := locks.NewLockRepo(db, log)
	hub := bus.NewHub(log)
	sub := hub.Subscribe(bus.Filter{})
	defer sub.Close()

	now := time.Now().UTC()
	clk := clock.NewFixed(now)

	testutil.SeedNode(t, ctx, db, "stale-node")
	testutil.SeedFileLock(t, ctx, db, "/stale/path", "stale-node")

	liveWindow := time.Minute
	expiryWindow := time.Hour
	sw := New(nodeRepo, lockRepo, hub, clk, time.Second, liveWindow, expiryWindow, log)

	clk.Advance(2 * expiryWindow)
	sw.tick(ctx)

	events := map[bus.EventType]bool{}
	draining := true
	for draining {
		select {
		case e := <-sub.C:
			events[e.Type] = true
		default:
			draining = false
		}
	}
	if !events[bus.EventNodeChanged] {
		t.Fatalf("expected a NodeChanged event from the heartbeat sweep, got %v", events)
	}
	if !events[bus.EventLockChanged] {
		t.Fatalf("expected a LockChanged event from the lock sweep, got %v", events)
	}

	dbc := dbctx.New(ctx, nil)
	node, err := nodeRepo.GetByID(dbc, "stale-node")
	if err != nil || node == nil {
		t.Fatalf("GetByID: node=%v err=%v", node, err)
	}
	if node.IsAvailable {
		t.Fatalf("expected stale-node to be marked unavailable")
	}

	remaining, err := lockRepo.ListAll(dbc)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected the stale lock to be swept, got %d remaining", len(remaining))
	}
}
