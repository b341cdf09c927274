package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/backoffice/internal/services"
	"github.com/charlesng35/backoffice/pkg/response"
)

type CompanyHandler struct {
	svc *services.CompanyService
}

type companyRequest struct {
	Name        string         `json:"name" validate:"required,notblank,max=128"`
	Description string         `json:"description" validate:"max=1024"`
	Settings    map[string]any `json:"settings"`
}

type updateCompanyRequest struct {
	Name        *string        `json:"name" validate:"omitempty,notblank,max=128"`
	Description *string        `json:"description" validate:"omitempty,max=1024"`
	Settings    map[string]any `json:"settings"`
}

func NewCompanyHandler(svc *services.CompanyService) *CompanyHandler {
	return &CompanyHandler{svc: svc}
}

// GET /api/companies
func (h *CompanyHandler) List(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	companies, err := h.svc.List(requestContext(c), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, companies)
}

// GET /api/companies/:id
func (h *CompanyHandler) Get(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	company, err := h.svc.Get(requestContext(c), identity, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}

// POST /api/companies
func (h *CompanyHandler) Create(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var body companyRequest
	if !bindAndValidate(c, &body) {
		return
	}
	company, err := h.svc.Create(requestContext(c), identity, services.CreateCompanyInput{
		Name:        body.Name,
		Description: body.Description,
		Settings:    body.Settings,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, company)
}

// PATCH /api/companies/:id
func (h *CompanyHandler) Update(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	var body updateCompanyRequest
	if !bindAndValidate(c, &body) {
		return
	}
	company, err := h.svc.Update(requestContext(c), identity, c.Param("id"), services.UpdateCompanyInput{
		Name:        body.Name,
		Description: body.Description,
		Settings:    body.Settings,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, company)
}

// DELETE /api/companies/:id
func (h *CompanyHandler) Delete(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(requestContext(c), identity, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
