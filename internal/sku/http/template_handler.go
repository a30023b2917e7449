// Package http provides HTTP handlers for SKU template management.
package http

import (
	"log/slog"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/fulfillment/internal/httputil"
	skuDomain "github.com/allisson/fulfillment/internal/sku/domain"
	"github.com/allisson/fulfillment/internal/sku/usecase"
)

// UpsertTemplateRequest is the payload for creating or replacing a template.
type UpsertTemplateRequest struct {
	Body string `json:"body"`
}

// TemplateResponse represents a template in API responses.
type TemplateResponse struct {
	SKU       string    `json:"sku"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListTemplatesResponse represents a paginated list of templates.
type ListTemplatesResponse struct {
	Templates []TemplateResponse `json:"templates"`
	Offset    int                `json:"offset"`
	Limit     int                `json:"limit"`
}

func newTemplateResponse(t *skuDomain.Template) TemplateResponse {
	return TemplateResponse{
		SKU:       t.SKU,
		Body:      t.Body,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// TemplateHandler handles HTTP requests for SKU template operations.
type TemplateHandler struct {
	templateRepo usecase.TemplateRepository
	logger       *slog.Logger
}

// NewTemplateHandler creates a new template handler with required dependencies.
func NewTemplateHandler(templateRepo usecase.TemplateRepository, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templateRepo: templateRepo, logger: logger}
}

// UpsertHandler creates or replaces the template for a SKU.
// PUT /v1/sku-templates/:sku
func (h *TemplateHandler) UpsertHandler(c *gin.Context) {
	sku := strings.ToUpper(strings.TrimSpace(c.Param("sku")))

	var req UpsertTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	// Reject bodies that would fail at render time, so broken templates are
	// caught at upload rather than on the first order that uses the SKU.
	if _, err := template.New(sku).Parse(req.Body); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	tmpl := &skuDomain.Template{
		SKU:  sku,
		Body: req.Body,
	}
	if err := tmpl.Validate(); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	if err := h.templateRepo.Upsert(c.Request.Context(), tmpl); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("template stored", slog.String("sku", sku))

	c.JSON(http.StatusOK, newTemplateResponse(tmpl))
}

// GetHandler retrieves the template for a SKU.
// GET /v1/sku-templates/:sku
func (h *TemplateHandler) GetHandler(c *gin.Context) {
	sku := strings.ToUpper(strings.TrimSpace(c.Param("sku")))

	tmpl, err := h.templateRepo.GetBySKU(c.Request.Context(), sku)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, newTemplateResponse(tmpl))
}

// ListHandler retrieves templates with pagination.
// GET /v1/sku-templates?offset=0&limit=50
func (h *TemplateHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	templates, err := h.templateRepo.List(c.Request.Context(), offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := ListTemplatesResponse{
		Templates: make([]TemplateResponse, 0, len(templates)),
		Offset:    offset,
		Limit:     limit,
	}
	for _, tmpl := range templates {
		response.Templates = append(response.Templates, newTemplateResponse(tmpl))
	}

	c.JSON(http.StatusOK, response)
}

// DeleteHandler removes the template for a SKU.
// DELETE /v1/sku-templates/:sku
func (h *TemplateHandler) DeleteHandler(c *gin.Context) {
	sku := strings.ToUpper(strings.TrimSpace(c.Param("sku")))

	if err := h.templateRepo.Delete(c.Request.Context(), sku); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}
