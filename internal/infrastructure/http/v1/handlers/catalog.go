package handlers

import (
	"github.com/gin-gonic/gin"

	"retailcore/internal/domain/catalog"
	"retailcore/internal/infrastructure/http/v1/dto"
)

// CatalogHandler serves product lookups for terminals.
type CatalogHandler struct {
	*BaseHandler
	catalog catalog.Reader
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(catalogReader catalog.Reader) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler: NewBaseHandler(),
		catalog:     catalogReader,
	}
}

// List returns all products.
// GET /api/v1/products
func (h *CatalogHandler) List(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromProducts(products))
}

// Get returns one product by id.
// GET /api/v1/products/:id
func (h *CatalogHandler) Get(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromProduct(product))
}

// GetByBarcode resolves a committed barcode to a product.
// GET /api/v1/products/barcode/:code
func (h *CatalogHandler) GetByBarcode(c *gin.Context) {
	product, err := h.catalog.GetProductByBarcode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromProduct(product))
}
