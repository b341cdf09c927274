package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/database"
	"github.com/charlesng35/backoffice/internal/handlers"
	"github.com/charlesng35/backoffice/internal/middleware"
	"github.com/charlesng35/backoffice/internal/permissions"
)

func registerMenuRoutes(api *gin.RouterGroup, handler *handlers.MenuHandler, authz middleware.MenuAuthorizer) {
	menus := api.Group("/menus")
	{
		menus.GET("", middleware.RequireMenuAction(authz, database.MenuMenus, permissions.ActionRead), handler.Tree)
		menus.POST("", middleware.RequireMenuAction(authz, database.MenuMenus, permissions.ActionCreate), handler.Create)
		menus.GET("/:id", middleware.RequireMenuAction(authz, database.MenuMenus, permissions.ActionRead), handler.Get)
		menus.PATCH("/:id", middleware.RequireMenuAction(authz, database.MenuMenus, permissions.ActionUpdate), handler.Update)
		menus.DELETE("/:id", middleware.RequireMenuAction(authz, database.MenuMenus, permissions.ActionDelete), handler.Delete)
		menus.POST("/:id/move", middleware.RequireMenuAction(authz, database.MenuMenus, permissions.ActionUpdate), handler.Move)
	}
}
