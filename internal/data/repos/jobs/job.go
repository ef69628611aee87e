package jobs

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
	"github.com/yungbote/batchcoord/internal/platform/logger"
)

// ListFilter holds the §4.6 query filters. Zero values mean "no filter" for
// that field.
type ListFilter struct {
	Status         domain.JobStatus
	Type           domain.JobType
	AssignedNodeId string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
	Limit          int
	Offset         int
}

type JobRepo interface {
	Create(dbc dbctx.Context, job *domain.Job) error
	GetByID(dbc dbctx.Context, id int64) (*domain.Job, error)
	List(dbc dbctx.Context, f ListFilter) ([]*domain.Job, error)
	Delete(dbc dbctx.Context, id int64) (bool, error)
	// UpdateFields performs an unconditional field update and bumps
	// RowVersion. Used for assignment, which the spec says does not carry
	// a RowVersion check.
	UpdateFields(dbc dbctx.Context, id int64, updates map[string]interface{}) error
	// CompareAndSetStatus performs §4.6's CAS update: only applies updates
	// if the current RowVersion equals expectedRowVersion, and always bumps
	// RowVersion by one on success.
	CompareAndSetStatus(dbc dbctx.Context, id int64, expectedRowVersion int64, updates map[string]interface{}) (bool, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

func (r *jobRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *jobRepo) Create(dbc dbctx.Context, job *domain.Job) error {
	return r.tx(dbc).WithContext(dbc.Ctx).Create(job).Error
}

func (r *jobRepo) GetByID(dbc dbctx.Context, id int64) (*domain.Job, error) {
	var j domain.Job
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Take(&j).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

func (r *jobRepo) List(dbc dbctx.Context, f ListFilter) ([]*domain.Job, error) {
	q := r.tx(dbc).WithContext(dbc.Ctx).Model(&domain.Job{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.AssignedNodeId != "" {
		q = q.Where("assigned_node_id = ?", f.AssignedNodeId)
	}
	if f.CreatedAfter != nil {
		q = q.Where("created_at > ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		q = q.Where("created_at < ?", *f.CreatedBefore)
	}
	q = q.Order("created_at DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var out []*domain.Job
	err := q.Find(&out).Error
	return out, err
}

func (r *jobRepo) Delete(dbc dbctx.Context, id int64) (bool, error) {
	res := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Delete(&domain.Job{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *jobRepo) UpdateFields(dbc dbctx.Context, id int64, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["row_version"] = gorm.Expr("row_version + 1")
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *jobRepo) CompareAndSetStatus(dbc dbctx.Context, id int64, expectedRowVersion int64, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["row_version"] = gorm.Expr("row_version + 1")
	res := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.Job{}).
		Where("id = ? AND row_version = ?", id, expectedRowVersion).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
