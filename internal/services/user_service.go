package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
	"github.com/charlesng35/backoffice/pkg/crypto"
	apperrors "github.com/charlesng35/backoffice/pkg/errors"
	"github.com/charlesng35/backoffice/pkg/logger"
	"github.com/charlesng35/backoffice/pkg/metrics"
)

var (
	// ErrAlreadyInitialized is returned when setup runs against a populated database.
	ErrAlreadyInitialized = apperrors.New("SETUP_COMPLETE", "System is already initialized", http.StatusConflict)
	// ErrUserInactive blocks logins of deactivated accounts.
	ErrUserInactive = apperrors.New("USER_INACTIVE", "User account is disabled", http.StatusForbidden)
	// ErrCompanyNotVisible hides companies the caller cannot see.
	ErrCompanyNotVisible = apperrors.New("COMPANY_NOT_FOUND", "Company not found", http.StatusNotFound)
)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
	Role        string
	CompanyID   string
	IsActive    *bool
}

// UpdateUserInput enumerates mutable user attributes.
type UpdateUserInput struct {
	Email       *string
	DisplayName *string
	Role        *string
	CompanyID   *string
	IsActive    *bool
}

// InitializeInput describes the first root account.
type InitializeInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// UserFilters captures listing filters.
type UserFilters struct {
	Query     string
	Role      string
	CompanyID string
	IsActive  *bool
}

// ListUsersOptions controls pagination for user listing.
type ListUsersOptions struct {
	Page     int
	PageSize int
	Filters  UserFilters
}

// UserService manages accounts within the limits of the caller's role.
type UserService struct {
	db     *gorm.DB
	access *AccessService
	audit  *AuditService
	log    *zap.Logger
	now    func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, access *AccessService, audit *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if access == nil {
		return nil, errors.New("user service: access service is required")
	}
	return &UserService{
		db:     db,
		access: access,
		audit:  audit,
		log:    logger.WithModule("users"),
		now:    time.Now,
	}, nil
}

// List returns the page of users visible to actor that match the filters. An
// actor who sees nobody gets an empty page.
func (s *UserService) List(ctx context.Context, actor permissions.Identity, opts ListUsersOptions) ([]models.User, int64, error) {
	visible, err := s.access.VisibleUsers(ensureContext(ctx), actor)
	if err != nil {
		return nil, 0, err
	}

	filtered := make([]models.User, 0, len(visible))
	for _, user := range visible {
		if matchesUserFilters(user, opts.Filters) {
			filtered = append(filtered, user)
		}
	}

	page, size := normalisePage(opts.Page, opts.PageSize)
	return paginate(filtered, page, size), int64(len(filtered)), nil
}

// Get loads a user visible to actor.
func (s *UserService) Get(ctx context.Context, actor permissions.Identity, id string) (*models.User, error) {
	user, err := s.access.Subject(ensureContext(ctx), actor, id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Profile loads the caller's own account.
func (s *UserService) Profile(ctx context.Context, actor permissions.Identity) (*models.User, error) {
	user, err := s.access.Store().FetchUser(ensureContext(ctx), actor.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load profile: %w", err)
	}
	return &user, nil
}

// Create provisions a user. The role must be assignable by actor and admins
// always create users inside their own company.
func (s *UserService) Create(ctx context.Context, actor permissions.Identity, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	role := permissions.ParseRole(input.Role)
	if !role.Known() {
		return nil, apperrors.NewBadRequest("unknown role")
	}
	if !permissions.CanAssign(actor.Role, role) {
		return nil, apperrors.ErrRoleNotAssignable
	}

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	companyID := strings.TrimSpace(input.CompanyID)
	if actor.Role == permissions.RoleAdmin || companyID == "" {
		companyID = actor.CompanyID
	}
	if err := s.ensureCompanyVisible(ctx, actor, companyID); err != nil {
		return nil, err
	}

	hashed, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hashed,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Role:         role,
		CompanyID:    companyID,
		IsActive:     true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict.WithMessage("Username already exists")
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	// gorm skips zero values that carry a default tag on insert.
	if input.IsActive != nil && !*input.IsActive {
		if err := s.db.WithContext(ctx).Model(user).Update("is_active", false).Error; err != nil {
			return nil, fmt.Errorf("user service: deactivate user: %w", err)
		}
		user.IsActive = false
	}

	s.log.Info("user created",
		zap.String("actor_id", actor.ID),
		zap.String("user_id", user.ID),
		zap.String("role", user.Role.String()),
		zap.String("company_id", user.CompanyID),
	)
	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "user.create",
		Resource: user.ID,
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"username": user.Username, "role": user.Role},
	})
	return user, nil
}

// Update modifies a user actor manages. Role changes must stay within the roles
// actor may assign, and admins cannot move users to another company.
func (s *UserService) Update(ctx context.Context, actor permissions.Identity, id string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.managed(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if email := trimmedPtr(input.Email); email != nil {
		updates["email"] = strings.ToLower(*email)
	}
	if name := trimmedPtr(input.DisplayName); name != nil {
		updates["display_name"] = *name
	}
	if input.Role != nil {
		role := permissions.ParseRole(*input.Role)
		if !role.Known() {
			return nil, apperrors.NewBadRequest("unknown role")
		}
		if !permissions.CanAssign(actor.Role, role) {
			return nil, apperrors.ErrRoleNotAssignable
		}
		updates["role"] = role
	}
	if companyID := trimmedPtr(input.CompanyID); companyID != nil && *companyID != user.CompanyID {
		if actor.Role == permissions.RoleAdmin {
			return nil, apperrors.ErrForbidden.WithMessage("Admins cannot move users between companies")
		}
		if err := s.ensureCompanyVisible(ctx, actor, *companyID); err != nil {
			return nil, err
		}
		updates["company_id"] = *companyID
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("user service: update user: %w", err)
		}
		s.audit.record(ctx, AuditEntry{
			Actor:    actor,
			Action:   "user.update",
			Resource: user.ID,
			Result:   AuditResultSuccess,
			Metadata: map[string]any{"fields": updatedFields(updates)},
		})
		s.access.notifier.NotifyUser(user.ID, EventAccountChanged, map[string]any{"fields": updatedFields(updates)})
	}

	fresh, err := s.access.Store().FetchUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("user service: reload user: %w", err)
	}
	return &fresh, nil
}

// SetPassword replaces the password of a user actor manages.
func (s *UserService) SetPassword(ctx context.Context, actor permissions.Identity, id, password string) error {
	ctx = ensureContext(ctx)

	user, err := s.managed(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.writePassword(ctx, user.ID, password); err != nil {
		return err
	}

	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "user.password_reset",
		Resource: user.ID,
		Result:   AuditResultSuccess,
	})
	return nil
}

// ChangePassword lets a user replace their own password after proving the
// current one.
func (s *UserService) ChangePassword(ctx context.Context, actor permissions.Identity, current, next string) error {
	ctx = ensureContext(ctx)

	user, err := s.access.Store().FetchUser(ctx, actor.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("user service: load user: %w", err)
	}
	if !crypto.VerifyPassword(user.PasswordHash, current) {
		return apperrors.ErrInvalidCredentials.WithMessage("Current password is incorrect")
	}
	if err := s.writePassword(ctx, user.ID, next); err != nil {
		return err
	}

	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "user.password_change",
		Resource: user.ID,
		Result:   AuditResultSuccess,
	})
	return nil
}

// Delete removes a user actor manages together with the user's grants.
func (s *UserService) Delete(ctx context.Context, actor permissions.Identity, id string) error {
	ctx = ensureContext(ctx)

	user, err := s.managed(ctx, actor, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.PermissionGrant{}).Error; err != nil {
			return fmt.Errorf("user service: delete grants: %w", err)
		}
		if err := tx.Delete(&models.User{}, "id = ?", user.ID).Error; err != nil {
			return fmt.Errorf("user service: delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("user deleted", zap.String("actor_id", actor.ID), zap.String("user_id", user.ID))
	s.audit.record(ctx, AuditEntry{
		Actor:    actor,
		Action:   "user.delete",
		Resource: user.ID,
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"username": user.Username},
	})
	s.access.notifier.NotifyUser(user.ID, EventAccountDeleted, nil)
	return nil
}

// Authenticate verifies a username and password and records the login.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if err != nil || !crypto.VerifyPassword(user.PasswordHash, password) {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		s.audit.record(ctx, AuditEntry{
			Action:   "auth.login",
			Resource: strings.TrimSpace(username),
			Result:   AuditResultFailure,
		})
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		return nil, ErrUserInactive
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Update("last_login_at", now).Error; err != nil {
		s.log.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	s.audit.record(ctx, AuditEntry{
		Actor:    user.Identity(),
		Action:   "auth.login",
		Resource: user.ID,
		Result:   AuditResultSuccess,
	})
	return &user, nil
}

// IsInitialized reports whether any account exists.
func (s *UserService) IsInitialized(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ensureContext(ctx)).Model(&models.User{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("user service: count users: %w", err)
	}
	return count > 0, nil
}

// InitializeRoot creates the first root account in the system company. It fails
// once any user exists.
func (s *UserService) InitializeRoot(ctx context.Context, input InitializeInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	hashed, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: hashed,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Role:         permissions.RoleRoot,
		CompanyID:    models.SystemCompanyID,
		IsActive:     true,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return fmt.Errorf("user service: count users: %w", err)
		}
		if count > 0 {
			return ErrAlreadyInitialized
		}
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("user service: create root: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("root account initialized", zap.String("user_id", user.ID), zap.String("username", user.Username))
	s.audit.record(ctx, AuditEntry{
		Actor:    user.Identity(),
		Action:   "setup.initialize",
		Resource: user.ID,
		Result:   AuditResultSuccess,
	})
	return user, nil
}

// managed loads a user actor may modify: the user must be visible and hold a
// role actor could assign.
func (s *UserService) managed(ctx context.Context, actor permissions.Identity, id string) (models.User, error) {
	user, err := s.access.Subject(ctx, actor, id)
	if err != nil {
		return models.User{}, err
	}
	if !permissions.CanAssign(actor.Role, user.Role) {
		return models.User{}, apperrors.ErrForbidden
	}
	return user, nil
}

func (s *UserService) ensureCompanyVisible(ctx context.Context, actor permissions.Identity, companyID string) error {
	if companyID == "" {
		return apperrors.NewBadRequest("company_id is required")
	}
	companies, err := s.access.VisibleCompanies(ctx, actor)
	if err != nil {
		return err
	}
	for _, company := range companies {
		if company.ID == companyID {
			return nil
		}
	}
	return ErrCompanyNotVisible
}

func (s *UserService) writePassword(ctx context.Context, userID, password string) error {
	hashed, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hashed).Error; err != nil {
		return fmt.Errorf("user service: update password: %w", err)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", apperrors.NewBadRequest("password is required")
	}
	hashed, err := crypto.HashPassword(password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return "", apperrors.NewBadRequest("password must be at most 72 bytes")
	}
	if err != nil {
		return "", fmt.Errorf("user service: hash password: %w", err)
	}
	return hashed, nil
}

func matchesUserFilters(user models.User, filters UserFilters) bool {
	if filters.Role != "" && string(user.Role) != filters.Role {
		return false
	}
	if filters.CompanyID != "" && user.CompanyID != filters.CompanyID {
		return false
	}
	if filters.IsActive != nil && user.IsActive != *filters.IsActive {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(filters.Query)); q != "" {
		return strings.Contains(strings.ToLower(user.Username), q) ||
			strings.Contains(strings.ToLower(user.Email), q) ||
			strings.Contains(strings.ToLower(user.DisplayName), q)
	}
	return true
}

func updatedFields(updates map[string]any) []string {
	fields := make([]string, 0, len(updates))
	for field := range updates {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
