package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workorder-service/internal/service"
)

// CatalogHandler lists option catalogs.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler constructs handler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// List GET /catalog/:kind.
func (h *CatalogHandler) List(c *fiber.Ctx) error {
	options, err := h.catalog.Options(c.UserContext(), c.Params("kind"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": options})
}
