// Package locks implements C5: the distributed file-path lock manager.
package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/batchcoord/internal/data/repos/locks"
	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/clock"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
	"github.com/yungbote/batchcoord/internal/services/pathnorm"
)

type Service struct {
	repo   locks.LockRepo
	bus    bus.Bus
	clock  clock.Clock
	log    *logger.Logger
	expiry time.Duration
}

func New(repo locks.LockRepo, b bus.Bus, clk clock.Clock, expiry time.Duration, baseLog *logger.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, bus: b, clock: clk, log: baseLog.With("service", "locks"), expiry: expiry}
}

// TryAcquire implements §4.4's TryAcquire, including the step-3 single
// retry on a unique-key race: the repo's TryAcquire runs inside one
// transaction that row-locks an existing lock row on dialects with
// SELECT ... FOR UPDATE, so a second caller on an existing key waits for
// the first to commit. Two callers racing to insert the same absent key
// (and any race on SQLite, which has no row lock) surface as a
// unique-constraint error instead; any repo error is retried once, and the
// retry observes the committed row through the refresh/steal/conflict
// branches.
func (s *Service) TryAcquire(ctx context.Context, rawPath, nodeId string) (*domain.FileLock, error) {
	key, err := pathnorm.FolderLockKey(rawPath)
	if err != nil {
		return nil, apierr.BadRequest(err)
	}
	if len(key) > 1024+len("folder_lock:") {
		return nil, apierr.BadRequest(fmt.Errorf("normalized path exceeds 1024 characters"))
	}

	now := s.clock.Now()
	dbc := dbctx.New(ctx, nil)

	result, row, err := s.repo.TryAcquire(dbc, key, nodeId, now, s.expiry)
	if err != nil {
		result, row, err = s.repo.TryAcquire(dbc, key, nodeId, s.clock.Now(), s.expiry)
		if err != nil {
			return nil, apierr.Internal(err)
		}
	}

	switch result {
	case locks.AcquireResultConflict:
		return nil, apierr.Conflict(fmt.Errorf("path %q is locked by another node", key))
	case locks.AcquireResultAcquiredNew, locks.AcquireResultAcquiredSteal:
		s.publish(ctx, bus.LockChanged{Path: key, Kind: bus.LockAcquired})
	case locks.AcquireResultAcquiredRefresh:
		// idempotent re-acquisition by the same owner: no new LockChanged
		// event, the lock state didn't actually change.
	}
	return row, nil
}

// Release implements §4.4 Release: deletes the row iff nodeId owns it.
func (s *Service) Release(ctx context.Context, rawPath, nodeId string) error {
	key, err := pathnorm.FolderLockKey(rawPath)
	if err != nil {
		return apierr.BadRequest(err)
	}
	dbc := dbctx.New(ctx, nil)
	released, err := s.repo.Release(dbc, key, nodeId)
	if err != nil {
		return apierr.Internal(err)
	}
	if !released {
		return apierr.Forbidden(fmt.Errorf("node %q does not own lock %q", nodeId, key))
	}
	s.publish(ctx, bus.LockChanged{Path: key, Kind: bus.LockReleased})
	return nil
}

// ResetAll implements §4.4 ResetAll (admin): deletes every row, returns the
// count cleared, and publishes one LockChanged{Reset} event when at least one
// row was cleared.
func (s *Service) ResetAll(ctx context.Context) (int64, error) {
	dbc := dbctx.New(ctx, nil)
	n, err := s.repo.ResetAll(dbc)
	if err != nil {
		return 0, apierr.Internal(err)
	}
	if n > 0 {
		s.publish(ctx, bus.LockChanged{Path: "*", Kind: bus.LockReset})
	}
	return n, nil
}

func (s *Service) ListAll(ctx context.Context) ([]*domain.FileLock, error) {
	dbc := dbctx.New(ctx, nil)
	out, err := s.repo.ListAll(dbc)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, bus.NewEvent(payload)); err != nil {
		s.log.Warn("failed to publish event", "error", err)
	}
}
