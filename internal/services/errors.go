package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/charlesng35/backoffice/internal/permissions"
	apperrors "github.com/charlesng35/backoffice/pkg/errors"
)

// isUniqueConstraintError detects uniqueness violations across database vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") || strings.Contains(lower, "duplicate")
}

// translateEngineError maps permission engine errors onto API errors. Errors the
// engine did not produce are returned unchanged.
func translateEngineError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, permissions.ErrCircularParent):
		return apperrors.ErrTreeCorrupted.WithInternal(err)
	case errors.Is(err, permissions.ErrStaleOrder):
		return apperrors.ErrConflict.WithMessage("Menu order changed, retry the move").WithInternal(err)
	case errors.Is(err, permissions.ErrUnknownNode):
		return apperrors.ErrNotFound.WithMessage("Menu node not found").WithInternal(err)
	case errors.Is(err, permissions.ErrInvalidAction),
		errors.Is(err, permissions.ErrInvalidField),
		errors.Is(err, permissions.ErrEmptyResource),
		errors.Is(err, permissions.ErrInvalidDirection),
		errors.Is(err, permissions.ErrDuplicateNode):
		return apperrors.NewBadRequest(err.Error()).WithInternal(err)
	default:
		return err
	}
}
