package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/handlers"
)

func registerAuthRoutes(api *gin.RouterGroup, handler *handlers.AuthHandler) {
	auth := api.Group("/auth")
	{
		auth.GET("/me", handler.Me)
		auth.POST("/password", handler.ChangePassword)
	}
}
