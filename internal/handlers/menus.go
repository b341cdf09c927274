package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/permissions"
	"github.com/charlesng35/backoffice/internal/services"
	"github.com/charlesng35/backoffice/pkg/response"
)

// MenuHandler administers the menu tree.
type MenuHandler struct {
	menus  *services.MenuService
	access *services.AccessService
}

func NewMenuHandler(menus *services.MenuService, access *services.AccessService) *MenuHandler {
	return &MenuHandler{menus: menus, access: access}
}

type createMenuRequest struct {
	Key        string         `json:"key" validate:"required,notblank,max=64"`
	Title      string         `json:"title" validate:"required,notblank,max=128"`
	Path       string         `json:"path" validate:"max=255"`
	Icon       string         `json:"icon" validate:"max=64"`
	ParentID   string         `json:"parent_id"`
	Attributes map[string]any `json:"attributes"`
}

type updateMenuRequest struct {
	Title      *string        `json:"title" validate:"omitempty,notblank,max=128"`
	Path       *string        `json:"path" validate:"omitempty,max=255"`
	Icon       *string        `json:"icon" validate:"omitempty,max=64"`
	ParentID   *string        `json:"parent_id"`
	Attributes map[string]any `json:"attributes"`
}

type moveMenuRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

// GET /api/menus
func (h *MenuHandler) Tree(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	forest, err := h.menus.Tree(requestContext(c), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, forest)
}

// GET /api/menus/:id
func (h *MenuHandler) Get(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	node, err := h.menus.Get(requestContext(c), identity, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, node)
}

// POST /api/menus
func (h *MenuHandler) Create(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var body createMenuRequest
	if !bindAndValidate(c, &body) {
		return
	}

	node, err := h.menus.Create(requestContext(c), identity, services.CreateMenuNodeInput{
		Key:        body.Key,
		Title:      body.Title,
		Path:       body.Path,
		Icon:       body.Icon,
		ParentID:   body.ParentID,
		Attributes: body.Attributes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, node)
}

// PATCH /api/menus/:id
func (h *MenuHandler) Update(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var body updateMenuRequest
	if !bindAndValidate(c, &body) {
		return
	}

	node, err := h.menus.Update(requestContext(c), identity, c.Param("id"), services.UpdateMenuNodeInput{
		Title:      body.Title,
		Path:       body.Path,
		Icon:       body.Icon,
		ParentID:   body.ParentID,
		Attributes: body.Attributes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, node)
}

// DELETE /api/menus/:id
func (h *MenuHandler) Delete(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.menus.Delete(requestContext(c), identity, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/menus/:id/move
func (h *MenuHandler) Move(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var body moveMenuRequest
	if !bindAndValidate(c, &body) {
		return
	}

	swap, err := h.access.MoveMenu(requestContext(c), identity, c.Param("id"), permissions.Direction(body.Direction))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"moved": len(swap) > 0, "orders": swap})
}
