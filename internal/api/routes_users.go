package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/database"
	"github.com/charlesng35/backoffice/internal/handlers"
	"github.com/charlesng35/backoffice/internal/middleware"
	"github.com/charlesng35/backoffice/internal/permissions"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler, grants *handlers.GrantHandler, authz middleware.MenuAuthorizer) {
	users := api.Group("/users")
	{
		users.GET("", middleware.RequireMenuAction(authz, database.MenuUsers, permissions.ActionRead), handler.List)
		users.POST("", middleware.RequireMenuAction(authz, database.MenuUsers, permissions.ActionCreate), handler.Create)
		users.GET("/:id", middleware.RequireMenuAction(authz, database.MenuUsers, permissions.ActionRead), handler.Get)
		users.PATCH("/:id", middleware.RequireMenuAction(authz, database.MenuUsers, permissions.ActionUpdate), handler.Update)
		users.DELETE("/:id", middleware.RequireMenuAction(authz, database.MenuUsers, permissions.ActionDelete), handler.Delete)
		users.POST("/:id/password", middleware.RequireMenuAction(authz, database.MenuUsers, permissions.ActionUpdate), handler.SetPassword)

		users.GET("/:id/grants", middleware.RequireMenuAction(authz, database.MenuPermissions, permissions.ActionRead), grants.Matrix)
		users.PUT("/:id/grants", middleware.RequireMenuAction(authz, database.MenuPermissions, permissions.ActionUpdate), grants.Set)
		users.PATCH("/:id/grants/:resourceID", middleware.RequireMenuAction(authz, database.MenuPermissions, permissions.ActionUpdate), grants.SetField)
	}
}
