package jobs

import (
	"context"
	"testing"
	"time"

	foldersrepo "github.com/yungbote/batchcoord/internal/data/repos/folders"
	jobsrepo "github.com/yungbote/batchcoord/internal/data/repos/jobs"
	"github.com/yungbote/batchcoord/internal/data/repos/testutil"
	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/clock"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
)

type fakeNodes struct {
	known map[string]bool
}

func (f *fakeNodes) Exists(_ context.Context, id string) (bool, error) {
	return f.known[id], nil
}

func newService(t *testing.T, known ...string) (*Service, *bus.Hub) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	jobRepo := jobsrepo.NewJobRepo(db, log)
	folderRepo := foldersrepo.NewFolderRepo(db, log)
	hub := bus.NewHub(log)
	clk := clock.NewFixed(time.Now())

	set := map[string]bool{}
	for _, id := range known {
		set[id] = true
	}
	return New(jobRepo, folderRepo, &fakeNodes{known: set}, hub, clk, log), hub
}

func TestCreateJobValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.CreateJob(ctx, "", domain.JobTypeHelloWorld, nil); err == nil {
		t.Fatalf("expected error for empty name")
	}
	if _, err := svc.CreateJob(ctx, "ok", domain.JobType("not-a-real-type"), nil); err == nil {
		t.Fatalf("expected error for unknown job type")
	}

	job, err := svc.CreateJob(ctx, "hello", domain.JobTypeHelloWorld, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != domain.JobStatusPending || job.RowVersion != 1 {
		t.Fatalf("expected Pending/RowVersion=1, got %v/%d", job.Status, job.RowVersion)
	}
}

func TestAssignToNodeRequiresKnownNodeAndNonTerminalJob(t *testing.T) {
	svc, _ := newService(t, "nodeA")
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, "assignable", domain.JobTypeHelloWorld, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	if _, err := svc.AssignToNode(ctx, job.Id, "unknown-node"); err == nil {
		t.Fatalf("expected error assigning to an unregistered node")
	}

	assigned, err := svc.AssignToNode(ctx, job.Id, "nodeA")
	if err != nil {
		t.Fatalf("AssignToNode: %v", err)
	}
	if assigned.AssignedNodeId == nil || *assigned.AssignedNodeId != "nodeA" {
		t.Fatalf("expected AssignedNodeId=nodeA, got %v", assigned.AssignedNodeId)
	}
}

func TestUpdateStatusLegalAndIllegalTransitions(t *testing.T) {
	svc, hub := newService(t)
	sub := hub.Subscribe(bus.Filter{})
	defer sub.Close()
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, "transitions", domain.JobTypeHelloWorld, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	<-sub.C // drain creation event

	if _, err := svc.UpdateStatus(ctx, job.Id, domain.JobStatusCompleted, nil, job.RowVersion); err == nil {
		t.Fatalf("expected InvalidTransition skipping Pending -> Completed")
	}

	running, err := svc.UpdateStatus(ctx, job.Id, domain.JobStatusRunning, nil, job.RowVersion)
	if err != nil {
		t.Fatalf("UpdateStatus Pending -> Running: %v", err)
	}
	if running.StartedAt == nil {
		t.Fatalf("expected StartedAt stamped on transition into Running")
	}
	select {
	case e := <-sub.C:
		jc := e.Payload.(bus.JobChanged)
		if jc.ToStatus != string(domain.JobStatusRunning) {
			t.Fatalf("expected JobChanged to Running, got %v", jc.ToStatus)
		}
	default:
		t.Fatalf("expected a JobChanged event on successful transition")
	}

	if _, err := svc.UpdateStatus(ctx, job.Id, domain.JobStatusRunning, nil, running.RowVersion); err != nil {
		t.Fatalf("same-status update should be a no-op, got error: %v", err)
	}
}

func TestUpdateStatusConcurrencyConflict(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, "concurrent", domain.JobTypeHelloWorld, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	// Two callers both read RowVersion=1 and race to apply different
	// transitions; only the first CAS may win.
	if _, err := svc.UpdateStatus(ctx, job.Id, domain.JobStatusRunning, nil, job.RowVersion); err != nil {
		t.Fatalf("first UpdateStatus: %v", err)
	}

	_, err = svc.UpdateStatus(ctx, job.Id, domain.JobStatusCancelled, nil, job.RowVersion)
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Status != 409 {
		t.Fatalf("expected 409 ConcurrencyConflict on stale rowVersion, got %v", err)
	}
}

func TestUpdateStatusSameTargetStaleRowVersionConflict(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, "same-target race", domain.JobTypeHelloWorld, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	// Two callers both read RowVersion=1 and race to apply the SAME
	// transition. The first's CAS wins and bumps RowVersion; the second
	// must still observe its stale RowVersion and get ConcurrencyConflict,
	// even though by the time it re-reads, Status already equals its
	// requested target.
	if _, err := svc.UpdateStatus(ctx, job.Id, domain.JobStatusRunning, nil, job.RowVersion); err != nil {
		t.Fatalf("first UpdateStatus: %v", err)
	}

	_, err = svc.UpdateStatus(ctx, job.Id, domain.JobStatusRunning, nil, job.RowVersion)
	apiErr, ok := err.(*apierr.Error)
	if !ok || apiErr.Status != 409 {
		t.Fatalf("expected 409 ConcurrencyConflict on same-target stale rowVersion, got %v", err)
	}
}

func TestCheckAndCompleteAggregatesFolderRows(t *testing.T) {
	svc, hub := newService(t)
	sub := hub.Subscribe(bus.Filter{})
	defer sub.Close()
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, "fanout job", domain.JobTypeVolumeCompression, nil)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, job.Id, domain.JobStatusRunning, nil, job.RowVersion); err != nil {
		t.Fatalf("UpdateStatus to Running: %v", err)
	}
	for len(sub.C) > 0 {
		<-sub.C
	}

	db := testutil.DB(t)
	f1 := testutil.SeedFolderProgress(t, ctx, db, job.Id, "/vol/a", domain.FolderStatusInProgress)
	f2 := testutil.SeedFolderProgress(t, ctx, db, job.Id, "/vol/b", domain.FolderStatusInProgress)

	// Not all folders are terminal yet: no-op.
	still, err := svc.CheckAndComplete(ctx, job.Id)
	if err != nil {
		t.Fatalf("CheckAndComplete (incomplete): %v", err)
	}
	if still.Status != domain.JobStatusRunning {
		t.Fatalf("expected job to remain Running, got %v", still.Status)
	}

	folderRepo := foldersrepo.NewFolderRepo(db, testutil.Logger(t))
	dbc := dbctx.New(ctx, nil)
	if err := folderRepo.UpdateFields(dbc, f1.Id, map[string]interface{}{"status": domain.FolderStatusCompleted}); err != nil {
		t.Fatalf("UpdateFields f1: %v", err)
	}
	if err := folderRepo.UpdateFields(dbc, f2.Id, map[string]interface{}{"status": domain.FolderStatusFailed}); err != nil {
		t.Fatalf("UpdateFields f2: %v", err)
	}

	final, err := svc.CheckAndComplete(ctx, job.Id)
	if err != nil {
		t.Fatalf("CheckAndComplete (complete): %v", err)
	}
	if final.Status != domain.JobStatusFailed {
		t.Fatalf("expected job to roll up to Failed when any folder failed, got %v", final.Status)
	}
}
