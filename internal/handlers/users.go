package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/services"
	"github.com/charlesng35/backoffice/pkg/response"
)

type UserHandler struct {
	service *services.UserService
}

type createUserRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Email       string `json:"email" validate:"omitempty,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"max=128"`
	Role        string `json:"role" validate:"required,oneof=admin audit user"`
	CompanyID   string `json:"company_id"`
	IsActive    *bool  `json:"is_active"`
}

type updateUserRequest struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=128"`
	Role        *string `json:"role" validate:"omitempty,oneof=admin audit user"`
	CompanyID   *string `json:"company_id"`
	IsActive    *bool   `json:"is_active"`
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	users, total, err := h.service.List(requestContext(c), identity, services.ListUsersOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.UserFilters{
			Query:     strings.TrimSpace(c.Query("q")),
			Role:      strings.TrimSpace(c.Query("role")),
			CompanyID: strings.TrimSpace(c.Query("company_id")),
			IsActive:  parseBoolQuery(c, "active"),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, users, response.NewMeta(page, perPage, total))
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	user, err := h.service.Get(requestContext(c), identity, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var body createUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Create(requestContext(c), identity, services.CreateUserInput{
		Username:    body.Username,
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
		Role:        body.Role,
		CompanyID:   body.CompanyID,
		IsActive:    body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// PATCH /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var body updateUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Update(requestContext(c), identity, c.Param("id"), services.UpdateUserInput{
		Email:       body.Email,
		DisplayName: body.DisplayName,
		Role:        body.Role,
		CompanyID:   body.CompanyID,
		IsActive:    body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.service.Delete(requestContext(c), identity, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/users/:id/password
func (h *UserHandler) SetPassword(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var body setPasswordRequest
	if !bindAndValidate(c, &body) {
		return
	}
	if err := h.service.SetPassword(requestContext(c), identity, c.Param("id"), body.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"updated": true})
}
