// Package jobs implements C7: job CRUD, the §4.6 state machine, node
// assignment, optimistic-concurrency updates, and folder-progress
// completion aggregation.
package jobs

import (
	"context"
	"fmt"

	"github.com/yungbote/batchcoord/internal/data/repos/folders"
	"github.com/yungbote/batchcoord/internal/data/repos/jobs"
	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/clock"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
)

const maxNameLen = 200
const maxParametersBytes = 64 * 1024

// NodeExister abstracts the registry lookup AssignToNode needs, avoiding a
// hard dependency of this package on the registry package.
type NodeExister interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type Service struct {
	repo        jobs.JobRepo
	folderRepo  folders.FolderRepo
	nodes       NodeExister
	bus         bus.Bus
	clock       clock.Clock
	log         *logger.Logger
}

func New(repo jobs.JobRepo, folderRepo folders.FolderRepo, nodes NodeExister, b bus.Bus, clk clock.Clock, baseLog *logger.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, folderRepo: folderRepo, nodes: nodes, bus: b, clock: clk, log: baseLog.With("service", "jobs")}
}

// CreateJob implements §4.6 Create.
func (s *Service) CreateJob(ctx context.Context, name string, jobType domain.JobType, parameters *string) (*domain.Job, error) {
	if name == "" || len(name) > maxNameLen {
		return nil, apierr.BadRequest(fmt.Errorf("name must be 1-%d characters", maxNameLen))
	}
	if !domain.ValidJobType(jobType) {
		return nil, apierr.BadRequest(fmt.Errorf("type %q is not a known job type", jobType))
	}
	if parameters != nil && len(*parameters) > maxParametersBytes {
		return nil, apierr.BadRequest(fmt.Errorf("parameters exceeds %d bytes", maxParametersBytes))
	}

	job := &domain.Job{
		Name:       name,
		Type:       jobType,
		Status:     domain.JobStatusPending,
		CreatedAt:  s.clock.Now(),
		Parameters: parameters,
		RowVersion: 1,
	}
	dbc := dbctx.New(ctx, nil)
	if err := s.repo.Create(dbc, job); err != nil {
		return nil, apierr.Internal(err)
	}
	s.publish(ctx, bus.JobChanged{JobId: job.Id, FromStatus: "", ToStatus: string(job.Status)})
	return job, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.Job, error) {
	dbc := dbctx.New(ctx, nil)
	job, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if job == nil {
		return nil, apierr.NotFound(fmt.Errorf("job %d not found", id))
	}
	return job, nil
}

func (s *Service) List(ctx context.Context, f jobs.ListFilter) ([]*domain.Job, error) {
	dbc := dbctx.New(ctx, nil)
	out, err := s.repo.List(dbc, f)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return out, nil
}

// Delete removes a job and cascades to its folder-progress rows, per §3's
// invariant.
func (s *Service) Delete(ctx context.Context, id int64) error {
	dbc := dbctx.New(ctx, nil)
	if _, err := s.folderRepo.DeleteByTask(dbc, id); err != nil {
		return apierr.Internal(err)
	}
	ok, err := s.repo.Delete(dbc, id)
	if err != nil {
		return apierr.Internal(err)
	}
	if !ok {
		return apierr.NotFound(fmt.Errorf("job %d not found", id))
	}
	return nil
}

// AssignToNode implements §4.6 Assignment: sets AssignedNodeId iff the node
// exists in the registry and the job is not terminal. Does not touch
// Status.
func (s *Service) AssignToNode(ctx context.Context, jobId int64, nodeId string) (*domain.Job, error) {
	job, err := s.GetByID(ctx, jobId)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return nil, apierr.InvalidTransition(fmt.Errorf("job %d is in terminal status %s", jobId, job.Status))
	}
	exists, err := s.nodes.Exists(ctx, nodeId)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apierr.BadRequest(fmt.Errorf("node %q is not registered", nodeId))
	}

	dbc := dbctx.New(ctx, nil)
	if err := s.repo.UpdateFields(dbc, jobId, map[string]interface{}{"assigned_node_id": nodeId}); err != nil {
		return nil, apierr.Internal(err)
	}
	job.AssignedNodeId = &nodeId
	job.RowVersion++
	return job, nil
}

var legalTransitions = map[domain.JobStatus]map[domain.JobStatus]bool{
	domain.JobStatusPending: {
		domain.JobStatusRunning:   true,
		domain.JobStatusCancelled: true,
	},
	domain.JobStatusRunning: {
		domain.JobStatusCompleted: true,
		domain.JobStatusFailed:    true,
		domain.JobStatusCancelled: true,
	},
}

// UpdateStatus implements §4.6's compare-and-set update: validates the
// requested transition against the state machine, then performs a CAS on
// RowVersion. A RowVersion mismatch returns ConcurrencyConflict regardless
// of whether the transition itself would have been legal — the caller must
// re-read and retry per §7.
func (s *Service) UpdateStatus(ctx context.Context, jobId int64, newStatus domain.JobStatus, message *string, rowVersion int64) (*domain.Job, error) {
	job, err := s.GetByID(ctx, jobId)
	if err != nil {
		return nil, err
	}
	if job.Status == newStatus {
		if rowVersion != job.RowVersion {
			return nil, apierr.ConcurrencyConflict(fmt.Errorf("job %d rowVersion %d is stale", jobId, rowVersion))
		}
		return job, nil
	}
	if rowVersion != job.RowVersion {
		return nil, apierr.ConcurrencyConflict(fmt.Errorf("job %d rowVersion %d is stale", jobId, rowVersion))
	}
	if !legalTransitions[job.Status][newStatus] {
		return nil, apierr.InvalidTransition(fmt.Errorf("cannot transition job %d from %s to %s", jobId, job.Status, newStatus))
	}

	now := s.clock.Now()
	updates := map[string]interface{}{"status": newStatus}
	if newStatus == domain.JobStatusRunning && job.StartedAt == nil {
		updates["started_at"] = now
	}
	if newStatus.Terminal() {
		updates["completed_at"] = now
	}
	if message != nil {
		updates["result_message"] = *message
	}

	dbc := dbctx.New(ctx, nil)
	ok, err := s.repo.CompareAndSetStatus(dbc, jobId, rowVersion, updates)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if !ok {
		return nil, apierr.ConcurrencyConflict(fmt.Errorf("job %d rowVersion %d is stale", jobId, rowVersion))
	}

	fromStatus := job.Status
	s.publish(ctx, bus.JobChanged{JobId: jobId, FromStatus: string(fromStatus), ToStatus: string(newStatus)})

	return s.GetByID(ctx, jobId)
}

// CheckAndComplete implements §4.6's completion aggregation: if every
// folder-progress row for jobId is terminal and at least one exists,
// transitions the job to Failed (any row Failed) or Completed (otherwise).
// No-op, and idempotent, if the job is already terminal or rows aren't all
// terminal yet.
func (s *Service) CheckAndComplete(ctx context.Context, jobId int64) (*domain.Job, error) {
	job, err := s.GetByID(ctx, jobId)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	dbc := dbctx.New(ctx, nil)
	rows, err := s.folderRepo.ListByTask(dbc, jobId)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if len(rows) == 0 {
		return job, nil
	}

	anyFailed := false
	for _, r := range rows {
		if !r.Status.Terminal() {
			return job, nil
		}
		if r.Status == domain.FolderStatusFailed {
			anyFailed = true
		}
	}

	target := domain.JobStatusCompleted
	if anyFailed {
		target = domain.JobStatusFailed
	}
	return s.UpdateStatus(ctx, jobId, target, nil, job.RowVersion)
}

func (s *Service) publish(ctx context.Context, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, bus.NewEvent(payload)); err != nil {
		s.log.Warn("failed to publish event", "error", err)
	}
}
