package handlers

import (
	"github.com/gin-gonic/gin"

	"retailcore/internal/domain/ledger"
	"retailcore/internal/infrastructure/http/v1/dto"
)

// LedgerHandler handles inventory ledger endpoints.
type LedgerHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(service *ledger.Service) *LedgerHandler {
	return &LedgerHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
	}
}

// RegisterConference appends a conference entry.
// POST /api/v1/products/:id/conferences
func (h *LedgerHandler) RegisterConference(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.ConferenceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	snapshot, err := h.service.RegisterConference(c.Request.Context(), ledger.ConferenceInput{
		ProductID: productID,
		Quantity:  req.Quantity,
		Note:      req.Note,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromAggregates(snapshot))
}

// RegisterLoss appends a loss entry.
// POST /api/v1/products/:id/losses
func (h *LedgerHandler) RegisterLoss(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.LossRequest
	if !h.BindJSON(c, &req) {
		return
	}

	snapshot, err := h.service.RegisterLoss(c.Request.Context(), ledger.LossInput{
		ProductID: productID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromAggregates(snapshot))
}

// GetAggregates returns the derived per-product stock view.
// GET /api/v1/products/:id/aggregates
func (h *LedgerHandler) GetAggregates(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	snapshot, err := h.service.QueryAggregates(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromAggregates(snapshot))
}

// ListEntries returns the full entry log for a product.
// GET /api/v1/products/:id/entries
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	productID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	entries, err := h.service.ListEntries(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromEntries(entries))
}

// DeleteEntry removes one entry (administrator-only reversal) and returns
// the recomputed aggregates.
// DELETE /api/v1/entries/:id
func (h *LedgerHandler) DeleteEntry(c *gin.Context) {
	entryID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	snapshot, err := h.service.DeleteEntry(c.Request.Context(), entryID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, dto.FromAggregates(snapshot))
}
