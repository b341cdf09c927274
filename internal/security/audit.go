package security

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	iauth "github.com/charlesng35/backoffice/internal/auth"
	"github.com/charlesng35/backoffice/internal/models"
	"github.com/charlesng35/backoffice/internal/permissions"
)

const (
	minSecretBytes       = 32
	preferredSecretBytes = 48
	maxTokenTTL          = 24 * time.Hour
	preferredTokenTTL    = time.Hour
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a simple status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// AuditService evaluates the access-control posture of a deployment: whether an
// emergency root account exists, token signing strength, and grant or user rows
// that no longer attach to anything.
type AuditService struct {
	db  *gorm.DB
	jwt *iauth.JWTService
	now func() time.Time
}

// NewAuditService constructs the audit service. Missing dependencies degrade the
// affected checks to warnings.
func NewAuditService(db *gorm.DB, jwt *iauth.JWTService) *AuditService {
	return &AuditService{db: db, jwt: jwt, now: time.Now}
}

// WithClock overrides the clock used in results.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkRootUser(ctx),
		s.checkJWTSecret(),
		s.checkTokenTTL(),
		s.checkOrphanGrants(ctx),
		s.checkDetachedUsers(ctx),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *AuditService) checkRootUser(ctx context.Context) Check {
	const id = "root_user_present"
	if s.db == nil {
		return unavailable(id)
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("role = ? AND is_active = ?", permissions.RoleRoot, true).
		Count(&count).Error; err != nil {
		return queryFailed(id, err)
	}

	if count == 0 {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "No active root user found.",
			Remediation: "Run first-time setup or reactivate a root account.",
		}
	}
	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: "Root user present.",
		Details: map[string]any{"count": count},
	}
}

func (s *AuditService) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if s.jwt == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "JWT service not initialised; unable to assess signing secret strength.",
			Remediation: "Initialise the JWT service with a strong secret.",
		}
	}

	length := s.jwt.SecretLength()
	switch {
	case length < minSecretBytes:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: fmt.Sprintf("Use a randomly generated secret of at least %d bytes.", minSecretBytes),
			Details:     map[string]any{"length": length},
		}
	case length < preferredSecretBytes:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to %d+ bytes.", length, preferredSecretBytes),
			Remediation: "Increase the length of BACKOFFICE_AUTH_JWT_SECRET.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

// Role changes only reach a client when its token is reissued, so long-lived
// tokens keep stale roles alive.
func (s *AuditService) checkTokenTTL() Check {
	const id = "access_token_ttl"
	if s.jwt == nil {
		return unavailable(id)
	}

	ttl := s.jwt.TTL()
	details := map[string]any{"ttl_seconds": int(ttl.Seconds())}
	switch {
	case ttl > maxTokenTTL:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("Access tokens live for %s.", ttl),
			Remediation: "Lower auth.jwt.access_token_ttl below 24h.",
			Details:     details,
		}
	case ttl > preferredTokenTTL:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access tokens live for %s; role changes take that long to apply.", ttl),
			Remediation: "Consider an access token TTL of one hour or less.",
			Details:     details,
		}
	default:
		return Check{ID: id, Status: StatusPass, Message: fmt.Sprintf("Access tokens live for %s.", ttl), Details: details}
	}
}

func (s *AuditService) checkOrphanGrants(ctx context.Context) Check {
	const id = "orphan_grants"
	if s.db == nil {
		return unavailable(id)
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.PermissionGrant{}).
		Where("resource_id NOT IN (?)", s.db.Model(&models.MenuNode{}).Select("id")).
		Or("user_id NOT IN (?)", s.db.Model(&models.User{}).Select("id")).
		Count(&count).Error; err != nil {
		return queryFailed(id, err)
	}

	if count > 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("%d grants reference deleted users or menu nodes.", count),
			Remediation: "Enable maintenance so the orphan grant job removes them.",
			Details:     map[string]any{"count": count},
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "Every grant references a live user and menu node."}
}

func (s *AuditService) checkDetachedUsers(ctx context.Context) Check {
	const id = "users_without_company"
	if s.db == nil {
		return unavailable(id)
	}

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("company_id NOT IN (?)", s.db.Model(&models.Company{}).Select("id")).
		Count(&count).Error; err != nil {
		return queryFailed(id, err)
	}

	if count > 0 {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("%d users belong to a company that no longer exists.", count),
			Remediation: "Move these users into an existing company.",
			Details:     map[string]any{"count": count},
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "Every user belongs to an existing company."}
}

func unavailable(id string) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     "Dependency unavailable; check skipped.",
		Remediation: "Ensure database connectivity before running the audit.",
	}
}

func queryFailed(id string, err error) Check {
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     fmt.Sprintf("Could not evaluate: %v", err),
		Remediation: "Retry after resolving database errors.",
	}
}
