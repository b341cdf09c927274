package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/permissions"
	"github.com/charlesng35/backoffice/internal/services"
	"github.com/charlesng35/backoffice/pkg/errors"
	"github.com/charlesng35/backoffice/pkg/response"
)

// AccessHandler answers authorization queries about the caller.
type AccessHandler struct {
	svc *services.AccessService
}

func NewAccessHandler(svc *services.AccessService) *AccessHandler {
	return &AccessHandler{svc: svc}
}

// GET /api/access/me/menu
func (h *AccessHandler) Menu(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	forest, err := h.svc.VisibleMenu(requestContext(c), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, forest)
}

// GET /api/access/me/roles
func (h *AccessHandler) Roles(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"role":             identity.Role,
		"assignable_roles": h.svc.AssignableRoles(identity),
	})
}

// GET /api/access/can?resource=<id>|key=<menu key>&action=<action>
func (h *AccessHandler) Can(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	action, err := permissions.ParseAction(c.Query("action"))
	if err != nil {
		response.Error(c, errors.NewBadRequest("action must be one of read, create, update, delete"))
		return
	}

	resource := strings.TrimSpace(c.Query("resource"))
	key := strings.TrimSpace(c.Query("key"))

	var allowed bool
	switch {
	case resource != "":
		allowed, err = h.svc.Can(requestContext(c), identity, resource, action)
	case key != "":
		allowed, err = h.svc.CanKey(requestContext(c), identity, key, action)
	default:
		response.Error(c, errors.NewBadRequest("resource or key is required"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"allowed": allowed, "action": action})
}
