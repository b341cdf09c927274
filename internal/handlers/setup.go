package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/services"
	"github.com/charlesng35/backoffice/pkg/response"
)

type SetupHandler struct {
	users *services.UserService
}

func NewSetupHandler(users *services.UserService) *SetupHandler {
	return &SetupHandler{users: users}
}

type initializeRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Email       string `json:"email" validate:"omitempty,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=128"`
}

// GET /api/setup/status
func (h *SetupHandler) Status(c *gin.Context) {
	initialized, err := h.users.IsInitialized(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"initialized": initialized})
}

// POST /api/setup/initialize
func (h *SetupHandler) Initialize(c *gin.Context) {
	var body initializeRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.users.InitializeRoot(requestContext(c), services.InitializeInput{
		Username:    body.Username,
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"root_user_id": user.ID})
}
