package services

import (
	"context"
	"strings"

	"github.com/charlesng35/backoffice/internal/permissions"
	apperrors "github.com/charlesng35/backoffice/pkg/errors"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// normalisePage clamps page and size to sane values.
func normalisePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size
}

// paginate returns the requested window of items.
func paginate[T any](items []T, page, size int) []T {
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func requireRoot(actor permissions.Identity) error {
	if !actor.IsRoot() {
		return apperrors.ErrForbidden
	}
	return nil
}

// requireGrantEditor allows the roles that administer other users' grants.
// Audit is read-only.
func requireGrantEditor(actor permissions.Identity) error {
	switch actor.Role {
	case permissions.RoleRoot, permissions.RoleAdmin:
		return nil
	default:
		return apperrors.ErrForbidden
	}
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
