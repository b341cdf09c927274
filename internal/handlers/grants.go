package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/permissions"
	"github.com/charlesng35/backoffice/internal/services"
	"github.com/charlesng35/backoffice/pkg/response"
)

// GrantHandler exposes the permissions editor.
type GrantHandler struct {
	svc *services.AccessService
}

func NewGrantHandler(svc *services.AccessService) *GrantHandler {
	return &GrantHandler{svc: svc}
}

type setGrantsRequest struct {
	Grants []permissions.ResourceGrant `json:"grants" validate:"required,dive"`
}

type setGrantFieldRequest struct {
	Field string `json:"field" validate:"required,oneof=can_read can_create can_update can_delete"`
	Value *bool  `json:"value" validate:"required"`
}

// GET /api/users/:id/grants
func (h *GrantHandler) Matrix(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	grants, err := h.svc.GrantMatrix(requestContext(c), identity, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, grants)
}

// PUT /api/users/:id/grants
func (h *GrantHandler) Set(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var body setGrantsRequest
	if !bindAndValidate(c, &body) {
		return
	}

	records, err := h.svc.SetGrants(requestContext(c), identity, c.Param("id"), body.Grants)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, records)
}

// PATCH /api/users/:id/grants/:resourceID
func (h *GrantHandler) SetField(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var body setGrantFieldRequest
	if !bindAndValidate(c, &body) {
		return
	}

	record, err := h.svc.SetSingleField(requestContext(c), identity, c.Param("id"), c.Param("resourceID"), body.Field, *body.Value)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, record)
}
