package folders

import (
	"gorm.io/gorm"

	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
	"github.com/yungbote/batchcoord/internal/platform/logger"
)

type FolderRepo interface {
	Create(dbc dbctx.Context, row *domain.TaskFolderProgress) error
	GetByID(dbc dbctx.Context, id int64) (*domain.TaskFolderProgress, error)
	GetByTaskAndPath(dbc dbctx.Context, taskId int64, folderPath string) (*domain.TaskFolderProgress, error)
	ListByTask(dbc dbctx.Context, taskId int64) ([]*domain.TaskFolderProgress, error)
	UpdateFields(dbc dbctx.Context, id int64, updates map[string]interface{}) error
	DeleteByTask(dbc dbctx.Context, taskId int64) (int64, error)
}

type folderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFolderRepo(db *gorm.DB, baseLog *logger.Logger) FolderRepo {
	return &folderRepo{db: db, log: baseLog.With("repo", "FolderRepo")}
}

func (r *folderRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *folderRepo) Create(dbc dbctx.Context, row *domain.TaskFolderProgress) error {
	return r.tx(dbc).WithContext(dbc.Ctx).Create(row).Error
}

func (r *folderRepo) GetByID(dbc dbctx.Context, id int64) (*domain.TaskFolderProgress, error) {
	var row domain.TaskFolderProgress
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *folderRepo) GetByTaskAndPath(dbc dbctx.Context, taskId int64, folderPath string) (*domain.TaskFolderProgress, error) {
	var row domain.TaskFolderProgress
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("task_id = ? AND folder_path = ?", taskId, folderPath).
		Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *folderRepo) ListByTask(dbc dbctx.Context, taskId int64) ([]*domain.TaskFolderProgress, error) {
	var out []*domain.TaskFolderProgress
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("task_id = ?", taskId).
		Order("folder_path ASC").
		Find(&out).Error
	return out, err
}

func (r *folderRepo) UpdateFields(dbc dbctx.Context, id int64, updates map[string]interface{}) error {
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.TaskFolderProgress{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *folderRepo) DeleteByTask(dbc dbctx.Context, taskId int64) (int64, error) {
	res := r.tx(dbc).WithContext(dbc.Ctx).Where("task_id = ?", taskId).Delete(&domain.TaskFolderProgress{})
	return res.RowsAffected, res.Error
}
