package registry

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/batchcoord/internal/data/repos/nodes"
	"github.com/yungbote/batchcoord/internal/data/repos/testutil"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/clock"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
)

func newService(t *testing.T) (*Service, *bus.Hub, *clock.Fixed) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := nodes.NewNodeRepo(db, log)
	hub := bus.NewHub(log)
	clk := clock.NewFixed(time.Now())
	tokens := NewTokenIssuer("node-secret", "admin-secret", time.Hour, clk)
	return New(db, repo, tokens, hub, clk, 2*time.Minute, log), hub, clk
}

func TestRegisterRejectsDuplicateAndBadIP(t *testing.T) {
	svc, hub, _ := newService(t)
	sub := hub.Subscribe(bus.Filter{})
	defer sub.Close()
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "n1", "node one", "not-an-ip", "fp1"); err == nil {
		t.Fatalf("expected BadRequest for invalid ip address")
	}

	node, token, err := svc.Register(ctx, "n1", "node one", "10.0.0.1", "fp1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if node.NodeId != "n1" || token == "" {
		t.Fatalf("expected registered node and token, got %v / %q", node, token)
	}
	select {
	case <-sub.C:
	default:
		t.Fatalf("expected a NodeChanged event on registration")
	}

	_, _, err = svc.Register(ctx, "n1", "node one again", "10.0.0.2", "fp1-again")
	if err == nil {
		t.Fatalf("expected Conflict registering a duplicate node id")
	}
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Status != 409 {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestLoginRequiresMatchingFingerprint(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "n2", "node two", "10.0.0.3", "correct-fp"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, "n2", "wrong-fp"); err == nil {
		t.Fatalf("expected Unauthorized for a mismatched fingerprint")
	}
	if _, err := svc.Login(ctx, "unknown-node", "whatever"); err == nil {
		t.Fatalf("expected Unauthorized for an unknown node id")
	}

	token, err := svc.Login(ctx, "n2", "correct-fp")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a non-empty token on successful login")
	}
}

func TestHeartbeatRestoresAvailabilityAndListAvailableRespectsLiveWindow(t *testing.T) {
	svc, hub, clk := newService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "n3", "node three", "10.0.0.4", "fp3"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	clk.Advance(5 * time.Minute) // past the 2-minute live window
	avail, err := svc.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	if len(avail) != 0 {
		t.Fatalf("expected no available nodes once the heartbeat goes stale, got %d", len(avail))
	}

	sub := hub.Subscribe(bus.Filter{})
	defer sub.Close()
	if err := svc.Heartbeat(ctx, "unknown-node"); err == nil {
		t.Fatalf("expected NotFound heartbeating an unregistered node")
	}
	if err := svc.Heartbeat(ctx, "n3"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	avail2, err := svc.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("ListAvailable after heartbeat: %v", err)
	}
	if len(avail2) != 1 || avail2[0].NodeId != "n3" {
		t.Fatalf("expected n3 available again, got %v", avail2)
	}
}
