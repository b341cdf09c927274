package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
	apperrors "github.com/charlesng35/backoffice/pkg/errors"
	"github.com/charlesng35/backoffice/pkg/logger"
)

// ErrMenuNodeNotFound indicates the requested menu node does not exist.
var ErrMenuNodeNotFound = apperrors.New("MENU_NODE_NOT_FOUND", "Menu node not found", http.StatusNotFound)

// CreateMenuNodeInput describes a new menu node. The node is appended after its
// last sibling.
type CreateMenuNodeInput struct {
	Key        string
	Title      string
	Path       string
	Icon       string
	ParentID   string
	Attributes map[string]any
}

// UpdateMenuNodeInput enumerates mutable menu attributes. A non-nil ParentID
// re-parents the node; an empty string moves it to the top level.
type UpdateMenuNodeInput struct {
	Title      *string
	Path       *string
	Icon       *string
	ParentID   *string
	Attributes map[string]any
}

// MenuService administers the menu tree. Every mutation requires root.
type MenuService struct {
	db     *gorm.DB
	access *AccessService
	audit  *AuditService
	log    *zap.Logger
}

func NewMenuService(db *gorm.DB, access *AccessService, audit *AuditService) (*MenuService, error) {
	if db == nil {
		return nil, errors.New("menu service: db is required")
	}
	if access == nil {
		return nil, errors.New("menu service: access service is required")
	}
	return &MenuService{db: db, access: access, audit: audit, log: logger.WithModule("menu")}, nil
}

// Tree returns the complete, unpruned menu forest. Only root may view it.
func (s *MenuService) Tree(ctx context.Context, actor permissions.Identity) ([]*permissions.TreeNode[permissions.ResourceNode], error) {
	if err := requireRoot(actor); err != nil {
		return nil, err
	}
	nodes, err := s.access.Nodes(ctx)
	if err != nil {
		return nil, err
	}
	forest, err := permissions.BuildTree(nodes)
	if err != nil {
		return nil, translateEngineError(err)
	}
	if forest == nil {
		forest = []*permissions.TreeNode[permissions.ResourceNode]{}
	}
	return forest, nil
}

// Get loads a single node.
func (s *MenuService) Get(ctx context.Context, actor permissions.Identity, id string) (*models.MenuNode, error) {
	if err := requireRoot(actor); err != nil {
		return nil, err
	}
	return s.load(ensureContext(ctx), s.db, id)
}

// Create inserts a node as the last child of its parent.
func (s *MenuService) Create(ctx context.Context, actor permissions.Identity, input CreateMenuNodeInput) (*models.MenuNode, error) {
	ctx = ensureContext(ctx)
	if err := requireRoot(actor); err != nil {
		return nil, err
	}

	key := strings.TrimSpace(input.Key)
	title := strings.TrimSpace(input.Title)
	if key == "" {
		return nil, apperrors.NewBadRequest("key is required")
	}
	if title == "" {
		return nil, apperrors.NewBadRequest("title is required")
	}

	attrs, err := encodeAttributes(input.Attributes)
	if err != nil {
		return nil, err
	}

	node := &models.MenuNode{
		Key:        key,
		Title:      title,
		Path:       strings.TrimSpace(input.Path),
		Icon:       strings.TrimSpace(input.Icon),
		Attributes: attrs,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var siblings []models.MenuNode
		if err := tx.Find(&siblings).Error; err != nil {
			return fmt.Errorf("menu service: load nodes: %w", err)
		}

		parentID := strings.TrimSpace(input.ParentID)
		if parentID != "" {
			if _, err := s.load(ctx, tx, parentID); err != nil {
				return err
			}
			node.ParentID = &parentID
		}
		node.SortOrder = permissions.NextOrder(siblings, parentID)

		if err := tx.Create(node).Error; err != nil {
			if isUniqueConstraintError(err) {
				return apperrors.ErrConflict.WithMessage("Menu key already exists")
			}
			return fmt.Errorf("menu service: create node: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.access.InvalidateNodes(ctx)
	s.log.Info("menu node created", zap.String("id", node.ID), zap.String("key", node.Key))
	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "menu.create",
		Resource: node.ID,
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"key": node.Key},
	})
	return node, nil
}

// Update changes presentation fields and optionally re-parents the node. A new
// parent that would close a cycle is rejected.
func (s *MenuService) Update(ctx context.Context, actor permissions.Identity, id string, input UpdateMenuNodeInput) (*models.MenuNode, error) {
	ctx = ensureContext(ctx)
	if err := requireRoot(actor); err != nil {
		return nil, err
	}

	var node *models.MenuNode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		node, err = s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		updates := map[string]any{}
		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return apperrors.NewBadRequest("title cannot be empty")
			}
			updates["title"] = title
		}
		if input.Path != nil {
			updates["path"] = strings.TrimSpace(*input.Path)
		}
		if input.Icon != nil {
			updates["icon"] = strings.TrimSpace(*input.Icon)
		}
		if input.Attributes != nil {
			attrs, err := encodeAttributes(input.Attributes)
			if err != nil {
				return err
			}
			updates["attributes"] = attrs
		}

		if parentID := trimmedPtr(input.ParentID); parentID != nil && *parentID != node.NodeParentID() {
			var all []models.MenuNode
			if err := tx.Find(&all).Error; err != nil {
				return fmt.Errorf("menu service: load nodes: %w", err)
			}
			if err := validateReparent(all, node.ID, *parentID); err != nil {
				return err
			}
			if *parentID == "" {
				updates["parent_id"] = nil
			} else {
				updates["parent_id"] = *parentID
			}
			updates["sort_order"] = permissions.NextOrder(all, *parentID)
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(node).Updates(updates).Error; err != nil {
			return fmt.Errorf("menu service: update node: %w", err)
		}
		node, err = s.load(ctx, tx, node.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.access.InvalidateNodes(ctx)
	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "menu.update",
		Resource: node.ID,
		Result:   AuditResultSuccess,
	})
	return node, nil
}

// Delete removes a node. Its children move up to the node's parent and every
// grant on the node is deleted in the same transaction.
func (s *MenuService) Delete(ctx context.Context, actor permissions.Identity, id string) error {
	ctx = ensureContext(ctx)
	if err := requireRoot(actor); err != nil {
		return err
	}

	var node *models.MenuNode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		node, err = s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		var all []models.MenuNode
		if err := tx.Order("sort_order ASC").Find(&all).Error; err != nil {
			return fmt.Errorf("menu service: load nodes: %w", err)
		}
		next := permissions.NextOrder(all, node.NodeParentID())
		for _, child := range all {
			if child.NodeParentID() != node.ID {
				continue
			}
			if err := tx.Model(&models.MenuNode{}).Where("id = ?", child.ID).Updates(map[string]any{
				"parent_id":  node.ParentID,
				"sort_order": next,
			}).Error; err != nil {
				return fmt.Errorf("menu service: re-parent child: %w", err)
			}
			next++
		}

		if err := tx.Where("resource_id = ?", node.ID).Delete(&models.PermissionGrant{}).Error; err != nil {
			return fmt.Errorf("menu service: delete grants: %w", err)
		}
		if err := tx.Delete(&models.MenuNode{}, "id = ?", node.ID).Error; err != nil {
			return fmt.Errorf("menu service: delete node: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.access.InvalidateNodes(ctx)
	s.log.Info("menu node deleted", zap.String("id", node.ID), zap.String("key", node.Key))
	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "menu.delete",
		Resource: node.ID,
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"key": node.Key},
	})
	return nil
}

func (s *MenuService) load(ctx context.Context, tx *gorm.DB, id string) (*models.MenuNode, error) {
	var node models.MenuNode
	err := tx.WithContext(ctx).First(&node, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMenuNodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("menu service: load node: %w", err)
	}
	return &node, nil
}

// validateReparent rebuilds the tree with nodeID under parentID and rejects the
// move when the parent is unknown or the tree would contain a cycle.
func validateReparent(all []models.MenuNode, nodeID, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == nodeID {
		return apperrors.NewBadRequest("a menu node cannot be its own parent")
	}

	found := false
	candidate := make([]models.MenuNode, len(all))
	for i, n := range all {
		if n.ID == parentID {
			found = true
		}
		if n.ID == nodeID {
			p := parentID
			n.ParentID = &p
		}
		candidate[i] = n
	}
	if !found {
		return ErrMenuNodeNotFound.WithMessage("Parent menu node not found")
	}

	if _, err := permissions.BuildTree(candidate); err != nil {
		if errors.Is(err, permissions.ErrCircularParent) {
			return apperrors.NewBadRequest("menu node cannot be moved under its own descendant").WithInternal(err)
		}
		return translateEngineError(err)
	}
	return nil
}

func encodeAttributes(attrs map[string]any) (datatypes.JSON, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return nil, apperrors.NewBadRequest("attributes must be a JSON object").WithInternal(err)
	}
	return datatypes.JSON(encoded), nil
}
