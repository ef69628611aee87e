package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/batchcoord/internal/domain"
)

func SeedNode(tb testing.TB, ctx context.Context, tx *gorm.DB, nodeId string) *domain.Node {
	tb.Helper()
	n := &domain.Node{
		NodeId:              nodeId,
		Name:                "node-" + nodeId,
		IpAddress:           "127.0.0.1",
		HardwareFingerprint: "hw-" + nodeId,
		IsAvailable:         true,
		LastHeartbeat:       time.Now().UTC(),
		CreatedAt:           time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(n).Error; err != nil {
		tb.Fatalf("seed node: %v", err)
	}
	return n
}

func SeedJob(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, jobType domain.JobType) *domain.Job {
	tb.Helper()
	j := &domain.Job{
		Name:       name,
		Type:       jobType,
		Status:     domain.JobStatusPending,
		CreatedAt:  time.Now().UTC(),
		RowVersion: 1,
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	return j
}

func SeedFileLock(tb testing.TB, ctx context.Context, tx *gorm.DB, path, nodeId string) *domain.FileLock {
	tb.Helper()
	now := time.Now().UTC()
	l := &domain.FileLock{
		FilePath:      path,
		LockingNodeId: nodeId,
		AcquiredAt:    now,
		LastUpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed file lock: %v", err)
	}
	return l
}

func SeedFolderProgress(tb testing.TB, ctx context.Context, tx *gorm.DB, taskId int64, folderPath string, status domain.FolderStatus) *domain.TaskFolderProgress {
	tb.Helper()
	f := &domain.TaskFolderProgress{
		TaskId:     taskId,
		FolderPath: folderPath,
		FolderName: folderPath,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed folder progress: %v", err)
	}
	return f
}

func PtrTime(v time.Time) *time.Time { return &v }

func PtrString(v string) *string { return &v }
