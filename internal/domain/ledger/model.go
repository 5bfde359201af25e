// Package ledger provides the append-only inventory reconciliation ledger.
// Entries are the sole source of truth; every aggregate is derived by
// re-summing them, never kept as an independently mutable counter.
package ledger

import (
	"time"

	"retailcore/internal/core/id"
)

// EntryKind distinguishes conference from loss entries.
type EntryKind string

const (
	// EntryConference converts received stock into confirmed, sellable stock.
	EntryConference EntryKind = "conference"
	// EntryLoss records received stock that can no longer be sold.
	EntryLoss EntryKind = "loss"
)

// Entry is an immutable audit record. It is never updated; an administrator
// may delete it, which removes it from aggregate recomputation.
type Entry struct {
	ID        id.ID     `db:"id" json:"id"`
	ProductID id.ID     `db:"product_id" json:"productId"`
	Kind      EntryKind `db:"kind" json:"kind"`
	Quantity  int       `db:"quantity" json:"quantity"`
	// Note is optional free text on conference entries.
	Note string `db:"note" json:"note,omitempty"`
	// Reason is mandatory on loss entries.
	Reason    string    `db:"reason" json:"reason,omitempty"`
	ActorID   string    `db:"actor_id" json:"actorId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// AggregateSnapshot is the derived per-product view.
// conferred + lost ≤ received and sold ≤ conferred hold at all times.
type AggregateSnapshot struct {
	ProductID         id.ID `json:"productId"`
	Received          int   `json:"received"`
	Conferred         int   `json:"conferred"`
	Lost              int   `json:"lost"`
	Sold              int   `json:"sold"`
	AvailableToConfer int   `json:"availableToConfer"`
	AvailableToSell   int   `json:"availableToSell"`
}
