package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/cache"
	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
	apperrors "github.com/charlesng35/backoffice/pkg/errors"
	"github.com/charlesng35/backoffice/pkg/logger"
	"github.com/charlesng35/backoffice/pkg/metrics"
)

const moveAttempts = 3

// AccessConfig tunes AccessService.
type AccessConfig struct {
	// PurgeUnmentionedGrants turns bulk grant updates into full replacements.
	PurgeUnmentionedGrants bool
	// NodeCacheTTL bounds how long a cached node list is served.
	NodeCacheTTL time.Duration
}

// AccessService answers authorization queries for the API and applies
// administrative grant and ordering changes.
type AccessService struct {
	store  *AccessStore
	nodes  *cachedNodeStore
	reader *permissions.Checker
	writer *permissions.Checker
	audit  *AuditService
	cfg    AccessConfig
	log    *zap.Logger

	notifier ChangeNotifier
}

// NewAccessService wires the permission checker to the database. nodeCache may be
// nil to disable node list caching.
func NewAccessService(db *gorm.DB, nodeCache cache.Store, audit *AuditService, cfg AccessConfig) (*AccessService, error) {
	store, err := NewAccessStore(db)
	if err != nil {
		return nil, err
	}

	log := logger.WithModule("access")
	nodes := newCachedNodeStore(store, nodeCache, cfg.NodeCacheTTL, log)

	reader, err := permissions.NewChecker(nodes)
	if err != nil {
		return nil, err
	}
	writer, err := permissions.NewChecker(store)
	if err != nil {
		return nil, err
	}

	return &AccessService{
		store:  store,
		nodes:  nodes,
		reader: reader,
		writer: writer,
		audit:  audit,
		cfg:    cfg,
		log:    log,

		notifier: noopNotifier{},
	}, nil
}

// Store exposes the underlying storage collaborator.
func (s *AccessService) Store() *AccessStore { return s.store }

// Can reports whether actor may perform action on resourceID.
func (s *AccessService) Can(ctx context.Context, actor permissions.Identity, resourceID string, action permissions.Action) (bool, error) {
	allowed, err := s.reader.Can(ensureContext(ctx), actor, resourceID, action)
	if err != nil {
		metrics.AccessDecisions.WithLabelValues(string(action), "error").Inc()
		return false, translateEngineError(err)
	}

	result := "deny"
	if allowed {
		result = "allow"
	}
	metrics.AccessDecisions.WithLabelValues(string(action), result).Inc()
	s.log.Debug("access decision",
		zap.String("user_id", actor.ID),
		zap.String("role", actor.Role.String()),
		zap.String("resource_id", resourceID),
		zap.String("action", string(action)),
		zap.Bool("allowed", allowed),
	)
	return allowed, nil
}

// CanKey is Can addressed by menu key. Keys that match no node are denied.
func (s *AccessService) CanKey(ctx context.Context, actor permissions.Identity, key string, action permissions.Action) (bool, error) {
	node, ok, err := s.NodeByKey(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		s.log.Warn("access check against unknown menu key", zap.String("key", key))
		return false, nil
	}
	return s.Can(ctx, actor, node.ID, action)
}

// Nodes returns the (possibly cached) node list.
func (s *AccessService) Nodes(ctx context.Context) ([]permissions.ResourceNode, error) {
	return s.nodes.FetchNodes(ensureContext(ctx))
}

// NodeByKey finds a node by its menu key attribute.
func (s *AccessService) NodeByKey(ctx context.Context, key string) (permissions.ResourceNode, bool, error) {
	nodes, err := s.Nodes(ctx)
	if err != nil {
		return permissions.ResourceNode{}, false, err
	}
	key = strings.TrimSpace(key)
	for _, node := range nodes {
		if nodeKey, _ := node.Attributes["key"].(string); nodeKey == key {
			return node, true, nil
		}
	}
	return permissions.ResourceNode{}, false, nil
}

// VisibleMenu returns the menu forest pruned for actor.
func (s *AccessService) VisibleMenu(ctx context.Context, actor permissions.Identity) ([]*permissions.TreeNode[permissions.ResourceNode], error) {
	started := time.Now()
	forest, err := s.reader.Menu(ensureContext(ctx), actor)
	metrics.MenuPruneDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		if errors.Is(err, permissions.ErrCircularParent) {
			s.log.Error("menu tree is corrupted", zap.Error(err))
		}
		return nil, translateEngineError(err)
	}
	if forest == nil {
		forest = []*permissions.TreeNode[permissions.ResourceNode]{}
	}
	return forest, nil
}

// AssignableRoles lists the roles actor may hand out.
func (s *AccessService) AssignableRoles(actor permissions.Identity) []permissions.Role {
	return s.reader.AssignableRoles(actor)
}

// VisibleUsers returns the users actor may see.
func (s *AccessService) VisibleUsers(ctx context.Context, actor permissions.Identity) ([]models.User, error) {
	users, err := s.store.FetchUsers(ctx)
	if err != nil {
		return nil, err
	}
	return permissions.VisibleUsersOf(actor, users), nil
}

// VisibleCompanies returns the companies actor may see.
func (s *AccessService) VisibleCompanies(ctx context.Context, actor permissions.Identity) ([]models.Company, error) {
	companies, err := s.store.FetchCompanies(ctx)
	if err != nil {
		return nil, err
	}
	return permissions.VisibleCompaniesOf(actor, companies), nil
}

// Subject loads userID when actor is allowed to see it. Missing and invisible
// users are reported the same way.
func (s *AccessService) Subject(ctx context.Context, actor permissions.Identity, userID string) (models.User, error) {
	user, err := s.store.FetchUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, apperrors.ErrSubjectNotVisible
	}
	if err != nil {
		return models.User{}, fmt.Errorf("access service: load user: %w", err)
	}
	if !permissions.SubjectVisibleTo(actor, user) {
		return models.User{}, apperrors.ErrSubjectNotVisible
	}
	return user, nil
}

// GrantMatrix lists every node with the effective grant userID holds on it.
func (s *AccessService) GrantMatrix(ctx context.Context, actor permissions.Identity, userID string) ([]permissions.NodeGrant, error) {
	ctx = ensureContext(ctx)

	subject, err := s.Subject(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	nodes, err := s.Nodes(ctx)
	if err != nil {
		return nil, err
	}
	grants, err := s.reader.EffectiveGrants(ctx, subject.Identity(), nodes)
	if err != nil {
		return nil, translateEngineError(err)
	}
	return grants, nil
}

// SetGrants writes a bulk grant update for userID. Resources not in grants keep
// their rows unless the service is configured to purge them.
func (s *AccessService) SetGrants(ctx context.Context, actor permissions.Identity, userID string, grants []permissions.ResourceGrant) ([]permissions.GrantRecord, error) {
	ctx = ensureContext(ctx)

	subject, err := s.authorizeGrantChange(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureResourcesExist(ctx, grants); err != nil {
		return nil, err
	}

	records, err := s.writer.SetGrants(ctx, subject.ID, grants, s.cfg.PurgeUnmentionedGrants)
	if err != nil {
		metrics.GrantWrites.WithLabelValues("bulk", "error").Inc()
		s.audit.record(ctx, AuditEntry{
			Actor:    actor,
			Action:   "grant.set",
			Resource: subject.ID,
			Result:   AuditResultFailure,
			Metadata: map[string]any{"error": err.Error()},
		})
		return nil, translateEngineError(err)
	}

	metrics.GrantWrites.WithLabelValues("bulk", "success").Inc()
	s.log.Info("grants replaced",
		zap.String("actor_id", actor.ID),
		zap.String("user_id", subject.ID),
		zap.Int("count", len(records)),
		zap.Bool("purge", s.cfg.PurgeUnmentionedGrants),
	)
	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "grant.set",
		Resource: subject.ID,
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"count": len(records), "purge": s.cfg.PurgeUnmentionedGrants},
	})
	s.notifier.NotifyUser(subject.ID, EventGrantsChanged, map[string]any{"count": len(records)})
	return records, nil
}

// SetSingleField toggles one grant field, creating the row from a full grant
// when none exists.
func (s *AccessService) SetSingleField(ctx context.Context, actor permissions.Identity, userID, resourceID, field string, value bool) (permissions.GrantRecord, error) {
	ctx = ensureContext(ctx)

	action, err := permissions.ParseField(field)
	if err != nil {
		return permissions.GrantRecord{}, translateEngineError(err)
	}
	subject, err := s.authorizeGrantChange(ctx, actor, userID)
	if err != nil {
		return permissions.GrantRecord{}, err
	}
	if err := s.ensureResourcesExist(ctx, []permissions.ResourceGrant{{ResourceID: resourceID}}); err != nil {
		return permissions.GrantRecord{}, err
	}

	record, err := s.writer.SetSingleField(ctx, subject.ID, resourceID, action, value)
	if err != nil {
		metrics.GrantWrites.WithLabelValues("field", "error").Inc()
		return permissions.GrantRecord{}, translateEngineError(err)
	}

	metrics.GrantWrites.WithLabelValues("field", "success").Inc()
	s.log.Info("grant field updated",
		zap.String("actor_id", actor.ID),
		zap.String("user_id", subject.ID),
		zap.String("resource_id", record.ResourceID),
		zap.String("field", action.Field()),
		zap.Bool("value", value),
	)
	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "grant.set_field",
		Resource: subject.ID,
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"resource_id": record.ResourceID, "field": action.Field(), "value": value},
	})
	s.notifier.NotifyUser(subject.ID, EventGrantsChanged, map[string]any{"resource_id": record.ResourceID})
	return record, nil
}

// MoveMenu swaps nodeID with its neighbour in dir. Only root may reorder the menu.
func (s *AccessService) MoveMenu(ctx context.Context, actor permissions.Identity, nodeID string, dir permissions.Direction) ([]permissions.OrderAssignment, error) {
	ctx = ensureContext(ctx)

	if err := requireRoot(actor); err != nil {
		return nil, err
	}
	if _, err := permissions.ParseDirection(string(dir)); err != nil {
		return nil, translateEngineError(err)
	}

	var swap []permissions.OrderAssignment
	var err error
	for attempt := 0; attempt < moveAttempts; attempt++ {
		swap, err = s.writer.MoveSibling(ctx, nodeID, dir)
		if !errors.Is(err, permissions.ErrStaleOrder) {
			break
		}
		s.log.Debug("menu order changed during move, planning again", zap.String("node_id", nodeID), zap.Int("attempt", attempt+1))
	}
	if err != nil {
		return nil, translateEngineError(err)
	}
	if len(swap) == 0 {
		return []permissions.OrderAssignment{}, nil
	}

	s.InvalidateNodes(ctx)
	s.log.Info("menu node moved", zap.String("node_id", nodeID), zap.String("direction", string(dir)))
	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "menu.move",
		Resource: nodeID,
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"direction": string(dir), "swapped_with": swap[1].ID},
	})
	return swap, nil
}

// InvalidateNodes drops the cached node list after a menu change.
func (s *AccessService) InvalidateNodes(ctx context.Context) {
	s.nodes.Invalidate(ctx)
	s.notifier.NotifyAll(EventMenuChanged, nil)
}

func (s *AccessService) authorizeGrantChange(ctx context.Context, actor permissions.Identity, userID string) (models.User, error) {
	if err := requireGrantEditor(actor); err != nil {
		return models.User{}, err
	}
	return s.Subject(ctx, actor, userID)
}

func (s *AccessService) ensureResourcesExist(ctx context.Context, grants []permissions.ResourceGrant) error {
	if len(grants) == 0 {
		return nil
	}
	nodes, err := s.Nodes(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		known[node.ID] = struct{}{}
	}
	for _, grant := range grants {
		id := strings.TrimSpace(grant.ResourceID)
		if id == "" {
			return translateEngineError(permissions.ErrEmptyResource)
		}
		if _, ok := known[id]; !ok {
			return apperrors.NewBadRequest(fmt.Sprintf("unknown resource %q", id))
		}
	}
	return nil
}
