package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/database"
	"github.com/charlesng35/backoffice/internal/handlers"
	"github.com/charlesng35/backoffice/internal/middleware"
	"github.com/charlesng35/backoffice/internal/permissions"
)

func registerAuditRoutes(api *gin.RouterGroup, handler *handlers.AuditHandler, authz middleware.MenuAuthorizer) {
	api.GET("/audit", middleware.RequireMenuAction(authz, database.MenuAudit, permissions.ActionRead), handler.List)
	api.GET("/security/audit", middleware.RequireRoles(permissions.RoleRoot, permissions.RoleAudit), handler.Posture)
}
