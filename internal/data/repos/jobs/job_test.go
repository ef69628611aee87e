package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/batchcoord/internal/data/repos/testutil"
	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
)

func TestJobRepoCreateGetListDelete(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRepo(db, testutil.Logger(t))

	j1 := testutil.SeedJob(t, ctx, tx, "job one", domain.JobTypeHelloWorld)
	j2 := testutil.SeedJob(t, ctx, tx, "job two", domain.JobTypeVolumeCompression)

	got, err := repo.GetByID(dbc, j1.Id)
	if err != nil || got == nil || got.Name != "job one" {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}

	list, err := repo.List(dbc, ListFilter{Type: domain.JobTypeVolumeCompression})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Id != j2.Id {
		t.Fatalf("List by type: expected [%v], got %v", j2.Id, list)
	}

	ok, err := repo.Delete(dbc, j1.Id)
	if err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	gone, _ := repo.GetByID(dbc, j1.Id)
	if gone != nil {
		t.Fatalf("Delete: expected job gone")
	}
}

func TestJobRepoCompareAndSetStatus(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRepo(db, testutil.Logger(t))

	j := testutil.SeedJob(t, ctx, tx, "concurrent job", domain.JobTypeHelloWorld)

	ok1, err := repo.CompareAndSetStatus(dbc, j.Id, 1, map[string]interface{}{
		"status":     domain.JobStatusRunning,
		"started_at": time.Now().UTC(),
	})
	if err != nil || !ok1 {
		t.Fatalf("first CAS: ok=%v err=%v", ok1, err)
	}

	ok2, err := repo.CompareAndSetStatus(dbc, j.Id, 1, map[string]interface{}{
		"status": domain.JobStatusCancelled,
	})
	if err != nil {
		t.Fatalf("second CAS: %v", err)
	}
	if ok2 {
		t.Fatalf("second CAS: expected false (stale row_version), got true")
	}

	got, _ := repo.GetByID(dbc, j.Id)
	if got.Status != domain.JobStatusRunning || got.RowVersion != 2 {
		t.Fatalf("expected status=Running row_version=2, got %v/%d", got.Status, got.RowVersion)
	}
}

func TestJobRepoListPagination(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRepo(db, testutil.Logger(t))

	for i := 0; i < 5; i++ {
		testutil.SeedJob(t, ctx, tx, "job", domain.JobTypeHelloWorld)
	}

	page1, err := repo.List(dbc, ListFilter{Limit: 2, Offset: 0})
	if err != nil || len(page1) != 2 {
		t.Fatalf("page1: len=%d err=%v", len(page1), err)
	}
	page2, err := repo.List(dbc, ListFilter{Limit: 2, Offset: 2})
	if err != nil || len(page2) != 2 {
		t.Fatalf("page2: len=%d err=%v", len(page2), err)
	}
	if page1[0].Id == page2[0].Id {
		t.Fatalf("pagination: expected distinct pages")
	}
}
