package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
	apperrors "github.com/charlesng35/backoffice/pkg/errors"
)

var (
	// ErrSystemCompanyImmutable protects the company that owns the root account.
	ErrSystemCompanyImmutable = apperrors.New("COMPANY_SYSTEM_IMMUTABLE", "System company cannot be deleted", http.StatusBadRequest)
	// ErrCompanyInUse is returned when deleting a company that still has users.
	ErrCompanyInUse = apperrors.New("COMPANY_IN_USE", "Company still has users", http.StatusConflict)
)

// CreateCompanyInput captures the attributes required to register a company.
type CreateCompanyInput struct {
	Name        string
	Description string
	Settings    map[string]any
}

// UpdateCompanyInput represents mutable company fields.
type UpdateCompanyInput struct {
	Name        *string
	Description *string
	Settings    map[string]any
}

// CompanyService manages tenants. Everyone may list the companies visible to
// them; only root may change them.
type CompanyService struct {
	db     *gorm.DB
	access *AccessService
	audit  *AuditService
}

// NewCompanyService constructs a CompanyService instance.
func NewCompanyService(db *gorm.DB, access *AccessService, audit *AuditService) (*CompanyService, error) {
	if db == nil {
		return nil, errors.New("company service: db is required")
	}
	if access == nil {
		return nil, errors.New("company service: access service is required")
	}
	return &CompanyService{db: db, access: access, audit: audit}, nil
}

// List returns the companies visible to actor.
func (s *CompanyService) List(ctx context.Context, actor permissions.Identity) ([]models.Company, error) {
	return s.access.VisibleCompanies(ensureContext(ctx), actor)
}

// Get returns a company visible to actor.
func (s *CompanyService) Get(ctx context.Context, actor permissions.Identity, id string) (*models.Company, error) {
	companies, err := s.List(ctx, actor)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	for i := range companies {
		if companies[i].ID == id {
			return &companies[i], nil
		}
	}
	return nil, ErrCompanyNotVisible
}

// Create registers a new company.
func (s *CompanyService) Create(ctx context.Context, actor permissions.Identity, input CreateCompanyInput) (*models.Company, error) {
	ctx = ensureContext(ctx)
	if err := requireRoot(actor); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("name is required")
	}

	settings, err := encodeAttributes(input.Settings)
	if err != nil {
		return nil, err
	}

	company := &models.Company{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Settings:    settings,
	}
	if err := s.db.WithContext(ctx).Create(company).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict.WithMessage("Company name already exists")
		}
		return nil, fmt.Errorf("company service: create company: %w", err)
	}

	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "company.create",
		Resource: company.ID,
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"name": company.Name},
	})
	return company, nil
}

// Update modifies company metadata.
func (s *CompanyService) Update(ctx context.Context, actor permissions.Identity, id string, input UpdateCompanyInput) (*models.Company, error) {
	ctx = ensureContext(ctx)
	if err := requireRoot(actor); err != nil {
		return nil, err
	}

	company, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if name := trimmedPtr(input.Name); name != nil {
		if *name == "" {
			return nil, apperrors.NewBadRequest("name cannot be empty")
		}
		updates["name"] = *name
	}
	if desc := trimmedPtr(input.Description); desc != nil {
		updates["description"] = *desc
	}
	if input.Settings != nil {
		settings, err := encodeAttributes(input.Settings)
		if err != nil {
			return nil, err
		}
		updates["settings"] = settings
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(company).Updates(updates).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, apperrors.ErrConflict.WithMessage("Company name already exists")
			}
			return nil, fmt.Errorf("company service: update company: %w", err)
		}
		s.audit.record(ctx, AuditEntry{
			Actor:    actor,
			Action:   "company.update",
			Resource: company.ID,
			Result:   AuditResultSuccess,
			Metadata: map[string]any{"fields": updatedFields(updates)},
		})
	}

	return s.load(ctx, company.ID)
}

// Delete removes a company that has no users. The system company is never removed.
func (s *CompanyService) Delete(ctx context.Context, actor permissions.Identity, id string) error {
	ctx = ensureContext(ctx)
	if err := requireRoot(actor); err != nil {
		return err
	}

	company, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if company.IsSystem || company.ID == models.SystemCompanyID {
		return ErrSystemCompanyImmutable
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var users int64
		if err := tx.Model(&models.User{}).Where("company_id = ?", company.ID).Count(&users).Error; err != nil {
			return fmt.Errorf("company service: count users: %w", err)
		}
		if users > 0 {
			return ErrCompanyInUse
		}
		if err := tx.Delete(&models.Company{}, "id = ?", company.ID).Error; err != nil {
			return fmt.Errorf("company service: delete company: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "company.delete",
		Resource: company.ID,
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"name": company.Name},
	})
	return nil
}

func (s *CompanyService) load(ctx context.Context, id string) (*models.Company, error) {
	var company models.Company
	err := s.db.WithContext(ctx).First(&company, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCompanyNotVisible
	}
	if err != nil {
		return nil, fmt.Errorf("company service: load company: %w", err)
	}
	return &company, nil
}
