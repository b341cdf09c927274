package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
)

// AccessStore is the gorm implementation of permissions.Store.
type AccessStore struct {
	db *gorm.DB
}

var _ permissions.Store = (*AccessStore)(nil)

func NewAccessStore(db *gorm.DB) (*AccessStore, error) {
	if db == nil {
		return nil, errors.New("access store: db is required")
	}
	return &AccessStore{db: db}, nil
}

// FetchMenuNodes loads every menu row ordered by sibling order.
func (s *AccessStore) FetchMenuNodes(ctx context.Context) ([]models.MenuNode, error) {
	var nodes []models.MenuNode
	if err := s.db.WithContext(ensureContext(ctx)).
		Order("sort_order ASC").
		Order("created_at ASC").
		Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("access store: list menu nodes: %w", err)
	}
	return nodes, nil
}

// FetchNodes returns the complete node list in engine form.
func (s *AccessStore) FetchNodes(ctx context.Context) ([]permissions.ResourceNode, error) {
	rows, err := s.FetchMenuNodes(ctx)
	if err != nil {
		return nil, err
	}
	nodes := make([]permissions.ResourceNode, len(rows))
	for i, row := range rows {
		nodes[i] = row.ResourceNode()
	}
	return nodes, nil
}

// FetchGrants returns every stored grant of userID.
func (s *AccessStore) FetchGrants(ctx context.Context, userID string) ([]permissions.GrantRecord, error) {
	var rows []models.PermissionGrant
	if err := s.db.WithContext(ensureContext(ctx)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("access store: list grants: %w", err)
	}
	records := make([]permissions.GrantRecord, len(rows))
	for i, row := range rows {
		records[i] = row.Record()
	}
	return records, nil
}

// SetGrants upserts records for userID in one transaction. With purgeUnmentioned
// the user's rows for resources absent from records are deleted in the same
// transaction.
func (s *AccessStore) SetGrants(ctx context.Context, userID string, records []permissions.GrantRecord, purgeUnmentioned bool) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("access store: user id is required")
	}

	return s.db.WithContext(ensureContext(ctx)).Transaction(func(tx *gorm.DB) error {
		if purgeUnmentioned {
			purge := tx.Where("user_id = ?", userID)
			if len(records) > 0 {
				resourceIDs := make([]string, len(records))
				for i, record := range records {
					resourceIDs[i] = record.ResourceID
				}
				purge = purge.Where("resource_id NOT IN ?", resourceIDs)
			}
			if err := purge.Delete(&models.PermissionGrant{}).Error; err != nil {
				return fmt.Errorf("access store: purge grants: %w", err)
			}
		}

		if len(records) == 0 {
			return nil
		}

		rows := make([]models.PermissionGrant, len(records))
		for i, record := range records {
			record.UserID = userID
			rows[i] = models.PermissionGrantFromRecord(record)
		}

		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "resource_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"can_read", "can_create", "can_update", "can_delete", "updated_at",
			}),
		}).Create(&rows).Error
		if err != nil {
			return fmt.Errorf("access store: upsert grants: %w", err)
		}
		return nil
	})
}

// SwapOrder exchanges the orders of two nodes under row locks. The swap was
// planned from a node list read earlier, so each locked row must still hold the
// order its partner is about to take; otherwise ErrStaleOrder is returned and
// nothing is written.
func (s *AccessStore) SwapOrder(ctx context.Context, first, second permissions.OrderAssignment) error {
	expected := map[string]int{first.ID: second.Order, second.ID: first.Order}

	return s.db.WithContext(ensureContext(ctx)).Transaction(func(tx *gorm.DB) error {
		var locked []models.MenuNode
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", []string{first.ID, second.ID}).
			Find(&locked).Error; err != nil {
			return fmt.Errorf("access store: lock menu nodes: %w", err)
		}
		if len(locked) != 2 {
			return fmt.Errorf("%w: swap %s/%s", permissions.ErrUnknownNode, first.ID, second.ID)
		}
		for _, row := range locked {
			if row.SortOrder != expected[row.ID] {
				return fmt.Errorf("%w: node %s holds order %d, expected %d",
					permissions.ErrStaleOrder, row.ID, row.SortOrder, expected[row.ID])
			}
		}
		if first.Order == second.Order {
			return nil
		}

		for _, assignment := range []permissions.OrderAssignment{first, second} {
			result := tx.Model(&models.MenuNode{}).
				Where("id = ? AND sort_order = ?", assignment.ID, expected[assignment.ID]).
				Update("sort_order", assignment.Order)
			if result.Error != nil {
				return fmt.Errorf("access store: update order: %w", result.Error)
			}
			if result.RowsAffected != 1 {
				return fmt.Errorf("%w: node %s", permissions.ErrStaleOrder, assignment.ID)
			}
		}
		return nil
	})
}

// FetchUsers loads every user ordered by username.
func (s *AccessStore) FetchUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ensureContext(ctx)).Order("username ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("access store: list users: %w", err)
	}
	return users, nil
}

// FetchUser loads a single user. A missing row returns gorm.ErrRecordNotFound.
func (s *AccessStore) FetchUser(ctx context.Context, id string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ensureContext(ctx)).First(&user, "id = ?", strings.TrimSpace(id)).Error
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

// FetchCompanies loads every company ordered by name.
func (s *AccessStore) FetchCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if err := s.db.WithContext(ensureContext(ctx)).Order("name ASC").Find(&companies).Error; err != nil {
		return nil, fmt.Errorf("access store: list companies: %w", err)
	}
	return companies, nil
}

// PurgeOrphanGrants deletes grants whose user or menu node no longer exists.
func (s *AccessStore) PurgeOrphanGrants(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("resource_id NOT IN (?)", s.db.Model(&models.MenuNode{}).Select("id")).
		Or("user_id NOT IN (?)", s.db.Model(&models.User{}).Select("id")).
		Delete(&models.PermissionGrant{})
	if result.Error != nil {
		return 0, fmt.Errorf("access store: purge orphan grants: %w", result.Error)
	}
	return result.RowsAffected, nil
}
