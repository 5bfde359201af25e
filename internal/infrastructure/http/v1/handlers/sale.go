package handlers

import (
	"github.com/gin-gonic/gin"

	"retailcore/internal/core/apperror"
	"retailcore/internal/core/id"
	"retailcore/internal/domain/pricing"
	"retailcore/internal/domain/sale"
	"retailcore/internal/infrastructure/http/v1/dto"
)

// SaleHandler handles cart and settlement endpoints.
type SaleHandler struct {
	*BaseHandler
	service *sale.Service
}

// NewSaleHandler creates a new sale handler.
func NewSaleHandler(service *sale.Service) *SaleHandler {
	return &SaleHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
	}
}

// OpenCart starts a new draft cart.
// POST /api/v1/carts
func (h *SaleHandler) OpenCart(c *gin.Context) {
	cart := h.service.OpenCart(c.Request.Context())
	h.OK(c, dto.FromCart(cart))
}

// GetCart returns a draft cart.
// GET /api/v1/carts/:id
func (h *SaleHandler) GetCart(c *gin.Context) {
	cartID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	cart, err := h.service.GetCart(c.Request.Context(), cartID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromCart(cart))
}

// AddLine adds a product to a cart.
// POST /api/v1/carts/:id/lines
func (h *SaleHandler) AddLine(c *gin.Context) {
	cartID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.AddLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	productID, err := id.Parse(req.ProductID)
	if err != nil {
		h.HandleError(c, apperror.NewValidation("invalid product id").WithDetail("productId", req.ProductID))
		return
	}

	cart, err := h.service.AddLine(c.Request.Context(), cartID, productID, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromCart(cart))
}

// UpdateLine sets the absolute quantity of a cart line.
// PUT /api/v1/carts/:id/lines/:productId
func (h *SaleHandler) UpdateLine(c *gin.Context) {
	cartID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	var req dto.UpdateLineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cart, err := h.service.UpdateLineQuantity(c.Request.Context(), cartID, productID, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromCart(cart))
}

// RemoveLine drops a product line from a cart.
// DELETE /api/v1/carts/:id/lines/:productId
func (h *SaleHandler) RemoveLine(c *gin.Context) {
	cartID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	productID, ok := h.ParseID(c, "productId")
	if !ok {
		return
	}

	cart, err := h.service.RemoveLine(c.Request.Context(), cartID, productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromCart(cart))
}

// SetDiscount attaches or removes the operator discount.
// PUT /api/v1/carts/:id/discount
func (h *SaleHandler) SetDiscount(c *gin.Context) {
	cartID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.DiscountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var discount *pricing.ManualDiscount
	if req.Type != "" {
		discount = &pricing.ManualDiscount{
			Type:  pricing.DiscountType(req.Type),
			Value: req.Value,
		}
	}

	cart, err := h.service.SetManualDiscount(c.Request.Context(), cartID, discount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromCart(cart))
}

// AttachCustomer links or detaches a customer.
// PUT /api/v1/carts/:id/customer
func (h *SaleHandler) AttachCustomer(c *gin.Context) {
	cartID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.AttachCustomerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var customerID *id.ID
	if req.CustomerID != nil {
		parsed, err := id.Parse(*req.CustomerID)
		if err != nil {
			h.HandleError(c, apperror.NewValidation("invalid customer id").WithDetail("customerId", *req.CustomerID))
			return
		}
		customerID = &parsed
	}

	cart, err := h.service.AttachCustomer(c.Request.Context(), cartID, customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromCart(cart))
}

// Abandon discards a draft cart.
// DELETE /api/v1/carts/:id
func (h *SaleHandler) Abandon(c *gin.Context) {
	cartID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Abandon(c.Request.Context(), cartID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Commit settles a cart into an immutable sale.
// POST /api/v1/carts/:id/commit
func (h *SaleHandler) Commit(c *gin.Context) {
	cartID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.CommitRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tx, err := h.service.Commit(c.Request.Context(), sale.CommitInput{
		CartID:               cartID,
		CommitKey:            req.CommitKey,
		PaymentMethod:        sale.PaymentMethod(req.PaymentMethod),
		Installments:         req.Installments,
		CustomerDiscountRate: req.CustomerDiscountRate,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromTransaction(tx, req.AmountReceived))
}

// GetTransaction returns a committed sale (receipt lookup).
// GET /api/v1/sales/:id
func (h *SaleHandler) GetTransaction(c *gin.Context) {
	saleID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	tx, err := h.service.GetTransaction(c.Request.Context(), saleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromTransaction(tx, nil))
}
