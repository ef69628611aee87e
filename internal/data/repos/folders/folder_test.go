package folders

import (
	"context"
	"testing"

	"github.com/yungbote/batchcoord/internal/data/repos/testutil"
	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
)

func TestFolderRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewFolderRepo(db, testutil.Logger(t))

	job := testutil.SeedJob(t, ctx, tx, "fanout job", domain.JobTypeVolumeCompression)

	f1 := testutil.SeedFolderProgress(t, ctx, tx, job.Id, "/vol/a", domain.FolderStatusPending)
	testutil.SeedFolderProgress(t, ctx, tx, job.Id, "/vol/b", domain.FolderStatusPending)

	got, err := repo.GetByTaskAndPath(dbc, job.Id, "/vol/a")
	if err != nil || got == nil || got.Id != f1.Id {
		t.Fatalf("GetByTaskAndPath: got=%v err=%v", got, err)
	}

	list, err := repo.ListByTask(dbc, job.Id)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListByTask: len=%d err=%v", len(list), err)
	}

	if err := repo.UpdateFields(dbc, f1.Id, map[string]interface{}{
		"status":   domain.FolderStatusCompleted,
		"progress": 1.0,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	updated, _ := repo.GetByID(dbc, f1.Id)
	if updated.Status != domain.FolderStatusCompleted || updated.Progress != 1.0 {
		t.Fatalf("UpdateFields: expected Completed/1.0, got %v/%v", updated.Status, updated.Progress)
	}

	n, err := repo.DeleteByTask(dbc, job.Id)
	if err != nil || n != 2 {
		t.Fatalf("DeleteByTask: n=%d err=%v", n, err)
	}
	remaining, _ := repo.ListByTask(dbc, job.Id)
	if len(remaining) != 0 {
		t.Fatalf("DeleteByTask: expected 0 remaining, got %d", len(remaining))
	}
}
