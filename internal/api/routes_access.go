package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/handlers"
)

func registerAccessRoutes(api *gin.RouterGroup, handler *handlers.AccessHandler) {
	access := api.Group("/access")
	{
		access.GET("/me/menu", handler.Menu)
		access.GET("/me/roles", handler.Roles)
		access.GET("/can", handler.Can)
	}
}
