package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/backoffice/internal/security"
	"github.com/charlesng35/backoffice/internal/services"
	"github.com/charlesng35/backoffice/pkg/errors"
	"github.com/charlesng35/backoffice/pkg/logger"
	"github.com/charlesng35/backoffice/pkg/response"
)

type AuditHandler struct {
	svc     *services.AuditService
	posture *security.AuditService
}

// NewAuditHandler serves the audit log. posture may be nil, in which case the
// posture endpoint answers 404.
func NewAuditHandler(svc *services.AuditService, posture *security.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc, posture: posture}
}

// GET /api/security/audit
func (h *AuditHandler) Posture(c *gin.Context) {
	if h.posture == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}
	result := h.posture.Run(requestContext(c))
	if result.Summary[string(security.StatusFail)] > 0 {
		logger.WithModule("security").Warn("posture audit reported failures",
			zap.Int("fail", result.Summary[string(security.StatusFail)]),
			zap.Int("warn", result.Summary[string(security.StatusWarn)]),
		)
	}
	response.Success(c, http.StatusOK, result)
}

// GET /api/audit
func (h *AuditHandler) List(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	page := parseIntQuery(c, "page", 1)
	perPage := parseIntQuery(c, "per_page", 50)

	filters := services.AuditFilters{
		ActorID:  c.Query("actor_id"),
		Action:   c.Query("action"),
		Result:   c.Query("result"),
		Resource: c.Query("resource"),
	}
	for key, dest := range map[string]**time.Time{"since": &filters.Since, "until": &filters.Until} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, errors.NewBadRequest(key+" must be an RFC3339 timestamp"))
			return
		}
		*dest = &parsed
	}

	logs, total, err := h.svc.List(requestContext(c), identity, services.AuditListOptions{
		Page:     page,
		PageSize: perPage,
		Filters:  filters,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, response.NewMeta(page, perPage, total))
}
