package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/database"
	"github.com/charlesng35/backoffice/internal/handlers"
	"github.com/charlesng35/backoffice/internal/middleware"
	"github.com/charlesng35/backoffice/internal/permissions"
)

func registerCompanyRoutes(api *gin.RouterGroup, handler *handlers.CompanyHandler, authz middleware.MenuAuthorizer) {
	companies := api.Group("/companies")
	{
		companies.GET("", middleware.RequireMenuAction(authz, database.MenuCompanies, permissions.ActionRead), handler.List)
		companies.POST("", middleware.RequireMenuAction(authz, database.MenuCompanies, permissions.ActionCreate), handler.Create)
		companies.GET("/:id", middleware.RequireMenuAction(authz, database.MenuCompanies, permissions.ActionRead), handler.Get)
		companies.PATCH("/:id", middleware.RequireMenuAction(authz, database.MenuCompanies, permissions.ActionUpdate), handler.Update)
		companies.DELETE("/:id", middleware.RequireMenuAction(authz, database.MenuCompanies, permissions.ActionDelete), handler.Delete)
	}
}
