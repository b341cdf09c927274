package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/auditctx"
	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
	apperrors "github.com/charlesng35/backoffice/pkg/errors"
	"github.com/charlesng35/backoffice/pkg/logger"
)

// Audit results.
const (
	AuditResultSuccess = "success"
	AuditResultFailure = "failure"
)

// AuditEntry is a single audit event. Actor fields left empty are filled from
// the request metadata stored in the context.
type AuditEntry struct {
	Actor    permissions.Identity
	Action   string
	Resource string
	Result   string
	Metadata map[string]any
}

// AuditFilters narrows audit queries.
type AuditFilters struct {
	ActorID  string
	Action   string
	Result   string
	Resource string
	Since    *time.Time
	Until    *time.Time
}

type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditService appends and reads the audit log.
type AuditService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db, log: logger.WithModule("audit")}, nil
}

// Log appends an entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return errors.New("audit service: action is required")
	}
	result := strings.TrimSpace(entry.Result)
	if result == "" {
		result = AuditResultSuccess
	}

	record := models.AuditLog{
		ActorRole: string(entry.Actor.Role),
		CompanyID: entry.Actor.CompanyID,
		Action:    action,
		Resource:  strings.TrimSpace(entry.Resource),
		Result:    result,
	}
	if id := strings.TrimSpace(entry.Actor.ID); id != "" {
		record.ActorID = &id
	}

	if meta, ok := auditctx.FromContext(ctx); ok {
		record.IPAddress = meta.IPAddress
		record.UserAgent = meta.UserAgent
		if record.ActorID == nil && meta.UserID != "" {
			id := meta.UserID
			record.ActorID = &id
			record.ActorRole = meta.Role
			record.CompanyID = meta.CompanyID
		}
	}

	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		record.Metadata = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("audit service: create log: %w", err)
	}
	return nil
}

// record logs entry and only warns when the audit write fails.
func (s *AuditService) record(ctx context.Context, entry AuditEntry) {
	if s == nil {
		return
	}
	if err := s.Log(ctx, entry); err != nil {
		s.log.Warn("audit write failed", zap.String("action", entry.Action), zap.Error(err))
	}
}

// List returns a page of entries, newest first. Only root and audit may read
// the log.
func (s *AuditService) List(ctx context.Context, actor permissions.Identity, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)

	if actor.Role != permissions.RoleRoot && actor.Role != permissions.RoleAudit {
		return nil, 0, apperrors.ErrForbidden
	}

	page, perPage := normalisePage(opts.Page, opts.PageSize)

	var (
		results []models.AuditLog
		total   int64
	)

	query := applyAuditFilters(s.db.WithContext(ctx).Model(&models.AuditLog{}), opts.Filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count logs: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}

	return results, total, nil
}

// CleanupOlderThan deletes entries older than retentionDays.
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	if filters.ActorID != "" {
		query = query.Where("actor_id = ?", filters.ActorID)
	}
	if filters.Action != "" {
		query = query.Where("action = ?", filters.Action)
	}
	if filters.Result != "" {
		query = query.Where("result = ?", filters.Result)
	}
	if filters.Resource != "" {
		query = query.Where("resource = ?", filters.Resource)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}
	return query
}
