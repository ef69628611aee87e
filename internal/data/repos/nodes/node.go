package nodes

import (
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
	"github.com/yungbote/batchcoord/internal/platform/logger"
)

// NodeRepo is the C3 access path for the node table. It never validates
// business rules (uniqueness-as-conflict, fingerprint match); those are C4's
// job. It only reports what the store actually did.
type NodeRepo interface {
	Create(dbc dbctx.Context, node *domain.Node) error
	GetByID(dbc dbctx.Context, nodeId string) (*domain.Node, error)
	UpdateFields(dbc dbctx.Context, nodeId string, updates map[string]interface{}) error
	ListAvailable(dbc dbctx.Context, since time.Time) ([]*domain.Node, error)
	ListAll(dbc dbctx.Context) ([]*domain.Node, error)
	MarkUnavailableBefore(dbc dbctx.Context, cutoff time.Time) ([]string, error)
}

type nodeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNodeRepo(db *gorm.DB, baseLog *logger.Logger) NodeRepo {
	return &nodeRepo{db: db, log: baseLog.With("repo", "NodeRepo")}
}

func (r *nodeRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *nodeRepo) Create(dbc dbctx.Context, node *domain.Node) error {
	return r.tx(dbc).WithContext(dbc.Ctx).Create(node).Error
}

func (r *nodeRepo) GetByID(dbc dbctx.Context, nodeId string) (*domain.Node, error) {
	var n domain.Node
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("node_id = ?", nodeId).Take(&n).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *nodeRepo) UpdateFields(dbc dbctx.Context, nodeId string, updates map[string]interface{}) error {
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.Node{}).
		Where("node_id = ?", nodeId).
		Updates(updates).Error
}

func (r *nodeRepo) ListAvailable(dbc dbctx.Context, since time.Time) ([]*domain.Node, error) {
	var out []*domain.Node
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("is_available = ? AND last_heartbeat >= ?", true, since).
		Order("node_id ASC").
		Find(&out).Error
	return out, err
}

func (r *nodeRepo) ListAll(dbc dbctx.Context) ([]*domain.Node, error) {
	var out []*domain.Node
	err := r.tx(dbc).WithContext(dbc.Ctx).Order("node_id ASC").Find(&out).Error
	return out, err
}

// MarkUnavailableBefore flips IsAvailable=false for every node whose
// LastHeartbeat predates cutoff, and returns the NodeIds actually flipped
// (so the sweeper can publish one HeartbeatLost event per node, not one per
// sweep tick regardless of whether anything changed).
func (r *nodeRepo) MarkUnavailableBefore(dbc dbctx.Context, cutoff time.Time) ([]string, error) {
	var stale []*domain.Node
	tx := r.tx(dbc)
	if err := tx.WithContext(dbc.Ctx).
		Where("is_available = ? AND last_heartbeat < ?", true, cutoff).
		Find(&stale).Error; err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(stale))
	for _, n := range stale {
		ids = append(ids, n.NodeId)
	}
	if err := tx.WithContext(dbc.Ctx).
		Model(&domain.Node{}).
		Where("node_id IN ?", ids).
		Update("is_available", false).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
