package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/handlers"
)

func registerSetupRoutes(api *gin.RouterGroup, handler *handlers.SetupHandler) {
	setup := api.Group("/setup")
	{
		setup.GET("/status", handler.Status)
		setup.POST("/initialize", handler.Initialize)
	}
}
