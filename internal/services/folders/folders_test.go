package folders

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/batchcoord/internal/data/repos/folders"
	"github.com/yungbote/batchcoord/internal/data/repos/testutil"
	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/clock"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
)

func newService(t *testing.T) (*Service, *bus.Hub, int64) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	job := testutil.SeedJob(t, context.Background(), db, "fanout", domain.JobTypeVolumeCompression)

	repo := folders.NewFolderRepo(db, log)
	hub := bus.NewHub(log)
	clk := clock.NewFixed(time.Now())
	return New(repo, hub, clk, log), hub, job.Id
}

func TestServiceCreateRejectsDuplicateAndEmptyPath(t *testing.T) {
	svc, _, taskId := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, taskId, "", "name"); err == nil {
		t.Fatalf("expected error for empty folderPath")
	}

	row, err := svc.Create(ctx, taskId, "/vol/a", "a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row.Status != domain.FolderStatusPending {
		t.Fatalf("expected Pending status, got %v", row.Status)
	}

	if _, err := svc.Create(ctx, taskId, "/vol/a", "a"); err == nil {
		t.Fatalf("expected Conflict creating duplicate (taskId, folderPath)")
	}
}

func TestServiceUpdateStampsTimestampsAndClampsProgress(t *testing.T) {
	svc, hub, taskId := newService(t)
	sub := hub.Subscribe(bus.Filter{})
	defer sub.Close()
	ctx := context.Background()

	row, err := svc.Create(ctx, taskId, "/vol/b", "b")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	<-sub.C // drain creation event

	inProgress := domain.FolderStatusInProgress
	overshoot := 1.5
	updated, err := svc.Update(ctx, row.Id, UpdateInput{Status: &inProgress, Progress: &overshoot})
	if err != nil {
		t.Fatalf("Update to InProgress: %v", err)
	}
	if updated.StartedAt == nil {
		t.Fatalf("expected StartedAt to be stamped on first transition into InProgress")
	}
	if updated.Progress != 1.0 {
		t.Fatalf("expected progress clamped to 1.0, got %v", updated.Progress)
	}

	completed := domain.FolderStatusCompleted
	final, err := svc.Update(ctx, row.Id, UpdateInput{Status: &completed})
	if err != nil {
		t.Fatalf("Update to Completed: %v", err)
	}
	if final.CompletedAt == nil {
		t.Fatalf("expected CompletedAt to be stamped on transition into a terminal state")
	}
}

func TestServiceDeleteByTask(t *testing.T) {
	svc, _, taskId := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, taskId, "/vol/c", "c"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, taskId, "/vol/d", "d"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := svc.DeleteByTask(ctx, taskId)
	if err != nil || n != 2 {
		t.Fatalf("DeleteByTask: n=%d err=%v", n, err)
	}
	remaining, err := svc.ListByTask(ctx, taskId)
	if err != nil || len(remaining) != 0 {
		t.Fatalf("ListByTask after delete: len=%d err=%v", len(remaining), err)
	}
}
