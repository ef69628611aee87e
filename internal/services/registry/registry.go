// Package registry implements C4: node identity, hardware-bound
// authentication, heartbeating, and availability listing.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/batchcoord/internal/domain"
	"github.com/yungbote/batchcoord/internal/data/repos/nodes"
	"github.com/yungbote/batchcoord/internal/platform/apierr"
	"github.com/yungbote/batchcoord/internal/platform/clock"
	"github.com/yungbote/batchcoord/internal/platform/dbctx"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
)

// Service implements §4.3's node-registry operations.
type Service struct {
	db     *gorm.DB
	repo   nodes.NodeRepo
	tokens *TokenIssuer
	bus    bus.Bus
	clock  clock.Clock
	log    *logger.Logger

	liveWindow time.Duration
}

func New(db *gorm.DB, repo nodes.NodeRepo, tokens *TokenIssuer, b bus.Bus, clk clock.Clock, liveWindow time.Duration, baseLog *logger.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{
		db:         db,
		repo:       repo,
		tokens:     tokens,
		bus:        b,
		clock:      clk,
		log:        baseLog.With("service", "registry"),
		liveWindow: liveWindow,
	}
}

// Register implements §4.3 Register: fails Conflict if the id already
// exists; otherwise inserts with IsAvailable=true and issues a token. The
// hardware fingerprint is hashed with bcrypt before it ever reaches the
// store or a log line.
func (s *Service) Register(ctx context.Context, id, name, ip, fingerprint string) (*domain.Node, string, error) {
	if err := validateIP(ip); err != nil {
		return nil, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(fingerprint), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", apierr.Internal(fmt.Errorf("hash fingerprint: %w", err))
	}

	now := s.clock.Now()
	node := &domain.Node{
		NodeId:              id,
		Name:                name,
		IpAddress:           ip,
		HardwareFingerprint: string(hash),
		IsAvailable:         true,
		LastHeartbeat:       now,
		CreatedAt:           now,
	}

	dbc := dbctx.New(ctx, nil)
	if err := s.repo.Create(dbc, node); err != nil {
		if isUniqueViolation(err) {
			return nil, "", apierr.Conflict(fmt.Errorf("node %q already registered", id))
		}
		return nil, "", apierr.Internal(err)
	}

	token, err := s.tokens.IssueNodeToken(id)
	if err != nil {
		return nil, "", apierr.Internal(err)
	}

	s.publish(ctx, bus.NodeChanged{NodeId: id, Kind: bus.NodeRegistered})
	s.log.Info("node registered", "node_id", id)
	return node, token, nil
}

// Login implements §4.3 Login: fails Unauthorized if the node is missing or
// the fingerprint doesn't match; on success refreshes LastHeartbeat and
// issues a fresh token.
func (s *Service) Login(ctx context.Context, id, fingerprint string) (string, error) {
	dbc := dbctx.New(ctx, nil)
	node, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return "", apierr.Internal(err)
	}
	if node == nil {
		return "", apierr.Unauthorized(fmt.Errorf("unknown node or fingerprint"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(node.HardwareFingerprint), []byte(fingerprint)); err != nil {
		return "", apierr.Unauthorized(fmt.Errorf("unknown node or fingerprint"))
	}

	now := s.clock.Now()
	if err := s.repo.UpdateFields(dbc, id, map[string]interface{}{
		"last_heartbeat": now,
		"is_available":   true,
	}); err != nil {
		return "", apierr.Internal(err)
	}

	token, err := s.tokens.IssueNodeToken(id)
	if err != nil {
		return "", apierr.Internal(err)
	}
	return token, nil
}

// Heartbeat implements §4.3 Heartbeat: sets LastHeartbeat=now,
// IsAvailable=true. Unknown id returns NotFound.
func (s *Service) Heartbeat(ctx context.Context, id string) error {
	dbc := dbctx.New(ctx, nil)
	node, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return apierr.Internal(err)
	}
	if node == nil {
		return apierr.NotFound(fmt.Errorf("node %q not found", id))
	}
	wasUnavailable := !node.IsAvailable
	now := s.clock.Now()
	if err := s.repo.UpdateFields(dbc, id, map[string]interface{}{
		"last_heartbeat": now,
		"is_available":   true,
	}); err != nil {
		return apierr.Internal(err)
	}
	if wasUnavailable {
		s.publish(ctx, bus.NodeChanged{NodeId: id, Kind: bus.NodeHeartbeatRestored})
	}
	return nil
}

// ListAvailable implements §4.3 ListAvailable.
func (s *Service) ListAvailable(ctx context.Context) ([]*domain.Node, error) {
	dbc := dbctx.New(ctx, nil)
	since := s.clock.Now().Add(-s.liveWindow)
	out, err := s.repo.ListAvailable(dbc, since)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return out, nil
}

// ListAll implements §4.3 ListAll.
func (s *Service) ListAll(ctx context.Context) ([]*domain.Node, error) {
	dbc := dbctx.New(ctx, nil)
	out, err := s.repo.ListAll(dbc)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return out, nil
}

// Exists reports whether a node is currently registered, used by the job
// manager's AssignToNode validation.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	dbc := dbctx.New(ctx, nil)
	node, err := s.repo.GetByID(dbc, id)
	if err != nil {
		return false, apierr.Internal(err)
	}
	return node != nil, nil
}

func (s *Service) publish(ctx context.Context, payload interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, bus.NewEvent(payload)); err != nil {
		s.log.Warn("failed to publish event", "error", err)
	}
}

func validateIP(ip string) error {
	if net.ParseIP(ip) == nil {
		return apierr.BadRequest(fmt.Errorf("ipAddress %q is not a valid IPv4 or IPv6 literal", ip))
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// Covers driver-specific unique-violation errors (pgx, sqlite) that GORM
	// doesn't normalize to ErrDuplicatedKey on every path.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "23505")
}
