// Package folders implements C6: CRUD over per-folder job progress rows,
// with the state-transition timestamping and event publication §4.5 asks
// for.
package folders

import (
	"context"
	"fmt"

	"github.com/yungbote/batchcoord/internal/data/repos/folders"
	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/clock"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
)

type Service struct {
	repo  folders.FolderRepo
	bus   bus.Bus
	clock clock.Clock
	log   *logger.Logger
}

func New(repo folders.FolderRepo, b bus.Bus, clk clock.Clock, baseLog *logger.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, bus: b, clock: clk, log: baseLog.With("service", "folders")}
}

// Create implements §4.5's creation side: inserts a Pending row for
// (taskId, folderPath), which GetByTaskAndPath's unique index enforces is
// one-per-pair.
func (s *Service) Create(ctx context.Context, taskId int64, folderPath, folderName string) (*domain.TaskFolderProgress, error) {
	if folderPath == "" {
		return nil, apierr.BadRequest(fmt.Errorf("folderPath must not be empty"))
	}
	dbc := dbctx.New(ctx, nil)
	existing, err := s.repo.GetByTaskAndPath(dbc, taskId, folderPath)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if existing != nil {
		return nil, apierr.Conflict(fmt.Errorf("folder %q already tracked for task %d", folderPath, taskId))
	}

	row := &domain.TaskFolderProgress{
		TaskId:     taskId,
		FolderPath: folderPath,
		FolderName: folderName,
		Status:     domain.FolderStatusPending,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.Create(dbc, row); err != nil {
		return nil, apierr.Internal(err)
	}
	s.publish(ctx, bus.FolderProgressChanged{TaskId: taskId, FolderPath: folderPath, Status: string(row.Status), Progress: 0})
	return row, nil
}

// UpdateInput carries the partial-field update §4.5 describes; a nil field
// means "leave unchanged".
type UpdateInput struct {
	Status           *domain.FolderStatus
	AssignedNodeId   *string
	AssignedNodeName *string
	Progress         *float64
	ErrorMessage     *string
	OutputPath       *string
}

// Update implements §4.5's partial update: progress is clamped to [0,1],
// StartedAt is stamped on first transition into InProgress, CompletedAt on
// transition into a terminal state. Always publishes a FolderProgressChanged
// event on success.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*domain.TaskFolderProgress, error) {
	dbc := dbctx.New(ctx, nil)
	row, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	if row == nil {
		return nil, apierr.NotFound(fmt.Errorf("folder row %d not found", id))
	}

	updates := map[string]interface{}{}
	now := s.clock.Now()

	if in.Status != nil {
		if *in.Status == domain.FolderStatusInProgress && row.StartedAt == nil {
			updates["started_at"] = now
			row.StartedAt = &now
		}
		if in.Status.Terminal() && row.CompletedAt == nil {
			updates["completed_at"] = now
			row.CompletedAt = &now
		}
		updates["status"] = *in.Status
		row.Status = *in.Status
	}
	if in.AssignedNodeId != nil {
		updates["assigned_node_id"] = *in.AssignedNodeId
		row.AssignedNodeId = in.AssignedNodeId
	}
	if in.AssignedNodeName != nil {
		updates["assigned_node_name"] = *in.AssignedNodeName
		row.AssignedNodeName = in.AssignedNodeName
	}
	if in.Progress != nil {
		p := clampProgress(*in.Progress)
		updates["progress"] = p
		row.Progress = p
	}
	if in.ErrorMessage != nil {
		updates["error_message"] = *in.ErrorMessage
		row.ErrorMessage = in.ErrorMessage
	}
	if in.OutputPath != nil {
		updates["output_path"] = *in.OutputPath
		row.OutputPath = in.OutputPath
	}

	if len(updates) > 0 {
		if err := s.repo.UpdateFields(dbc, id, updates); err != nil {
			return nil, apierr.Internal(err)
		}
	}

	s.publish(ctx, bus.FolderProgressChanged{
		TaskId:     row.TaskId,
		FolderPath: row.FolderPath,
		Status:     string(row.Status),
		Progress:   row.Progress,
	})
	return row, nil
}

func (s *Service) ListByTask(ctx context.Context, taskId int64) ([]*domain.TaskFolderProgress, error) {
	dbc := dbctx.New(ctx, nil)
	out, err := s.repo.ListByTask(dbc, taskId)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return out, nil
}

// DeleteByTask implements §3's invariant that deleting a Job cascades to its
// folder rows.
func (s *Service) DeleteByTask(ctx context.Context, taskId int64) (int64, error) {
	dbc := dbctx.New(ctx, nil)
	n, err := s.repo.DeleteByTask(dbc, taskId)
	if err != nil {
		return 0, apierr.Internal(err)
	}
	return n, nil
}

func clampProgress(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func (s *Service) publish(ctx context.Context, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, bus.NewEvent(payload)); err != nil {
		s.log.Warn("failed to publish event", "error", err)
	}
}
