package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-intake/internal/api/dto"
	"github.com/spec-kit/ticket-intake/internal/catalog"
	"github.com/spec-kit/ticket-intake/internal/domain"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

// CatalogHandler exposes the reference tables.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

// ListFields GET /catalog.
func (h *CatalogHandler) ListFields(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.catalog.Fields()})
}

// ListOptions GET /catalog/:field. With ?label= it resolves a single code,
// answering "N/A" when the label is unknown.
func (h *CatalogHandler) ListOptions(c *fiber.Ctx) error {
	field := strings.ToLower(c.Params("field"))
	if !h.catalog.HasField(field) {
		return apperrors.NewNotFound("catalog field", map[string]any{"field": field})
	}

	if label := c.Query("label"); label != "" {
		return c.JSON(fiber.Map{"data": dto.LabelLookupResponse{
			Field: field,
			Label: label,
			Value: h.catalog.FindValueByLabel(field, label),
		}})
	}

	options := h.catalog.Options(field)
	items := make([]dto.CatalogOption, 0, len(options))
	for _, opt := range options {
		items = append(items, dto.CatalogOption{Value: opt.Code, Label: opt.Label})
	}
	return c.JSON(fiber.Map{"data": items, "field": field, "missing_value": domain.NotAvailable})
}
