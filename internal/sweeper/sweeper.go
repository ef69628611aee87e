// Package sweeper implements C10: a periodic background task that expires
// stale heartbeats and stale file locks, independent of request handlers.
package sweeper

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/batchcoord/internal/data/repos/locks"
	"github.com/yungbote/batchcoord/internal/data/repos/nodes"
	"github.com/yungbote/batchcoord/internal/platform/clock"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
)

// Sweeper runs the §4.9 heartbeat and lock sweeps on a fixed interval. The
// two sweeps run concurrently each tick via errgroup, and a failure in one
// never aborts the other or the next tick — the sweeper logs and continues,
// never blocking request handlers on its own I/O.
type Sweeper struct {
	nodeRepo     nodes.NodeRepo
	lockRepo     locks.LockRepo
	bus          bus.Bus
	clock        clock.Clock
	log          *logger.Logger
	interval     time.Duration
	liveWindow   time.Duration
	expiryWindow time.Duration
}

func New(nodeRepo nodes.NodeRepo, lockRepo locks.LockRepo, b bus.Bus, clk clock.Clock, interval, liveWindow, expiryWindow time.Duration, baseLog *logger.Logger) *Sweeper {
	if clk == nil {
		clk = clock.System{}
	}
	return &Sweeper{
		nodeRepo:     nodeRepo,
		lockRepo:     lockRepo,
		bus:          b,
		clock:        clk,
		log:          baseLog.With("component", "LivenessSweeper"),
		interval:     interval,
		liveWindow:   liveWindow,
		expiryWindow: expiryWindow,
	}
}

// Run blocks, ticking every interval until ctx is cancelled. App.Start
// launches it in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopping")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error { return s.sweepHeartbeats(ctx) })
	g.Go(func() error { return s.sweepLocks(ctx) })
	if err := g.Wait(); err != nil {
		s.log.Warn("sweep tick encountered an error", "error", err)
	}
}

func (s *Sweeper) sweepHeartbeats(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.liveWindow)
	dbc := dbctx.New(ctx, nil)
	ids, err := s.nodeRepo.MarkUnavailableBefore(dbc, cutoff)
	if err != nil {
		s.log.Error("heartbeat sweep failed", "error", err)
		return err
	}
	for _, id := range ids {
		s.publish(ctx, bus.NodeChanged{NodeId: id, Kind: bus.NodeHeartbeatLost})
	}
	if len(ids) > 0 {
		s.log.Info("heartbeat sweep marked nodes unavailable", "count", len(ids))
	}
	return nil
}

func (s *Sweeper) sweepLocks(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.expiryWindow)
	dbc := dbctx.New(ctx, nil)
	paths, err := s.lockRepo.DeleteStaleBefore(dbc, cutoff)
	if err != nil {
		s.log.Error("lock sweep failed", "error", err)
		return err
	}
	for _, p := range paths {
		s.publish(ctx, bus.LockChanged{Path: p, Kind: bus.LockExpired})
	}
	if len(paths) > 0 {
		s.log.Info("lock sweep cleared stale locks", "count", len(paths))
	}
	return nil
}

func (s *Sweeper) publish(ctx context.Context, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, bus.NewEvent(payload)); err != nil {
		s.log.Warn("failed to publish event", "error", err)
	}
}
