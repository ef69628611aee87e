package locks

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
	"github.com/yungbote/batchcoord/internal/platform/logger"
)

// AcquireResult tells the caller which branch of §4.4 step 2 fired, so the
// service layer can publish the right LockChanged kind without a second
// read.
type AcquireResult int

const (
	AcquireResultAcquiredNew AcquireResult = iota
	AcquireResultAcquiredRefresh
	AcquireResultAcquiredSteal
	AcquireResultConflict
)

type LockRepo interface {
	// TryAcquire implements §4.4 step 2 inside one transaction:
	// lookup-then-insert-or-refresh-or-steal-or-conflict. On dialects other
	// than SQLite the lookup row-locks an existing row, so a concurrent
	// acquirer on that key blocks; an insert race on an absent key fails on
	// the unique index instead.
	TryAcquire(dbc dbctx.Context, key string, nodeId string, now time.Time, expiry time.Duration) (AcquireResult, *domain.FileLock, error)
	Release(dbc dbctx.Context, key string, nodeId string) (bool, error)
	ResetAll(dbc dbctx.Context) (int64, error)
	ListAll(dbc dbctx.Context) ([]*domain.FileLock, error)
	// DeleteStaleBefore removes every row whose LastUpdatedAt predates
	// cutoff and returns the paths removed, for the sweeper's safety-net
	// pass (§4.9 step 2).
	DeleteStaleBefore(dbc dbctx.Context, cutoff time.Time) ([]string, error)
}

type lockRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLockRepo(db *gorm.DB, baseLog *logger.Logger) LockRepo {
	return &lockRepo{db: db, log: baseLog.With("repo", "LockRepo")}
}

func (r *lockRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *lockRepo) TryAcquire(dbc dbctx.Context, key string, nodeId string, now time.Time, expiry time.Duration) (AcquireResult, *domain.FileLock, error) {
	var result AcquireResult
	var row domain.FileLock

	err := r.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var existing domain.FileLock
		q := txx.Where("file_path = ?", key)
		// SQLite has no SELECT ... FOR UPDATE syntax; row-locking only
		// applies on dialects that support it (Postgres in production).
		// On SQLite the transaction's own serialization plus the unique
		// index on file_path still makes a concurrent Create race into a
		// unique-constraint error, which the service layer retries once
		// per §4.4 step 3.
		if txx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := q.Take(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = domain.FileLock{
				FilePath:      key,
				LockingNodeId: nodeId,
				AcquiredAt:    now,
				LastUpdatedAt: now,
			}
			if err := txx.Create(&row).Error; err != nil {
				return err
			}
			result = AcquireResultAcquiredNew
			return nil
		}
		if err != nil {
			return err
		}

		if existing.LockingNodeId == nodeId {
			existing.LastUpdatedAt = now
			if err := txx.Model(&domain.FileLock{}).
				Where("id = ?", existing.Id).
				Update("last_updated_at", now).Error; err != nil {
				return err
			}
			row = existing
			result = AcquireResultAcquiredRefresh
			return nil
		}

		if now.Sub(existing.LastUpdatedAt) > expiry {
			if err := txx.Model(&domain.FileLock{}).
				Where("id = ?", existing.Id).
				Updates(map[string]interface{}{
					"locking_node_id": nodeId,
					"acquired_at":     now,
					"last_updated_at": now,
				}).Error; err != nil {
				return err
			}
			existing.LockingNodeId = nodeId
			existing.AcquiredAt = now
			existing.LastUpdatedAt = now
			row = existing
			result = AcquireResultAcquiredSteal
			return nil
		}

		result = AcquireResultConflict
		return nil
	})

	if err != nil {
		return AcquireResultConflict, nil, err
	}
	if result == AcquireResultConflict {
		return result, nil, nil
	}
	return result, &row, nil
}

// Release deletes the row iff LockingNodeId matches, reporting via the bool
// whether a row was actually removed (false means NotOwner — no mutation,
// per §4.4).
func (r *lockRepo) Release(dbc dbctx.Context, key string, nodeId string) (bool, error) {
	res := r.tx(dbc).WithContext(dbc.Ctx).
		Where("file_path = ? AND locking_node_id = ?", key, nodeId).
		Delete(&domain.FileLock{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *lockRepo) ResetAll(dbc dbctx.Context) (int64, error) {
	res := r.tx(dbc).WithContext(dbc.Ctx).Where("1 = 1").Delete(&domain.FileLock{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *lockRepo) ListAll(dbc dbctx.Context) ([]*domain.FileLock, error) {
	var out []*domain.FileLock
	err := r.tx(dbc).WithContext(dbc.Ctx).Order("file_path ASC").Find(&out).Error
	return out, err
}

func (r *lockRepo) DeleteStaleBefore(dbc dbctx.Context, cutoff time.Time) ([]string, error) {
	var stale []*domain.FileLock
	tx := r.tx(dbc)
	if err := tx.WithContext(dbc.Ctx).
		Where("last_updated_at < ?", cutoff).
		Find(&stale).Error; err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}
	paths := make([]string, 0, len(stale))
	for _, l := range stale {
		paths = append(paths, l.FilePath)
	}
	if err := tx.WithContext(dbc.Ctx).
		Where("last_updated_at < ?", cutoff).
		Delete(&domain.FileLock{}).Error; err != nil {
		return nil, err
	}
	return paths, nil
}
