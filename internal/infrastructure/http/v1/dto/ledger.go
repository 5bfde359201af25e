package dto

import (
	"time"

	"retailcore/internal/domain/ledger"
)

// ConferenceRequest registers a conference entry.
type ConferenceRequest struct {
	Quantity int    `json:"quantity" binding:"required"`
	Note     string `json:"note"`
}

// LossRequest registers a loss entry.
type LossRequest struct {
	Quantity int    `json:"quantity" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// EntryResponse is one ledger entry.
type EntryResponse struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Kind      string    `json:"kind"`
	Quantity  int       `json:"quantity"`
	Note      string    `json:"note,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	ActorID   string    `json:"actorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromEntry maps a ledger entry.
func FromEntry(e *ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:        e.ID.String(),
		ProductID: e.ProductID.String(),
		Kind:      string(e.Kind),
		Quantity:  e.Quantity,
		Note:      e.Note,
		Reason:    e.Reason,
		ActorID:   e.ActorID,
		CreatedAt: e.CreatedAt,
	}
}

// FromEntries maps an entry list.
func FromEntries(entries []ledger.Entry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, FromEntry(&entries[i]))
	}
	return out
}

// AggregatesResponse is the derived per-product stock view.
type AggregatesResponse struct {
	ProductID         string `json:"productId"`
	Received          int    `json:"received"`
	Conferred         int    `json:"conferred"`
	Lost              int    `json:"lost"`
	Sold              int    `json:"sold"`
	AvailableToConfer int    `json:"availableToConfer"`
	AvailableToSell   int    `json:"availableToSell"`
}

// FromAggregates maps an aggregate snapshot.
func FromAggregates(s *ledger.AggregateSnapshot) AggregatesResponse {
	return AggregatesResponse{
		ProductID:         s.ProductID.String(),
		Received:          s.Received,
		Conferred:         s.Conferred,
		Lost:              s.Lost,
		Sold:              s.Sold,
		AvailableToConfer: s.AvailableToConfer,
		AvailableToSell:   s.AvailableToSell,
	}
}
