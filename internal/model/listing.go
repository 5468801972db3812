package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing status values as stored in listings.status.  A listing is
// ACTIVE while its auction is open, ENDED once closed (by deadline or
// explicitly) and CANCELLED when withdrawn by the farmer.  The only
// legal transitions are ACTIVE→ENDED and ACTIVE→CANCELLED; a
// cancelled listing never becomes active again.
const (
	ListingStatusActive    = "ACTIVE"
	ListingStatusEnded     = "ENDED"
	ListingStatusCancelled = "CANCELLED"
)

// Listing represents a wholesale product offered for auction.  It is
// created when a farmer submits a product for live bidding and its
// deadline is fixed at creation time (now + requested duration).
// Re-submitting an ended listing reactivates its auction room with a
// fresh deadline; the listing row itself is reused.
//
// Fields:
//
//	ID            – primary key identifier.
//	FarmerID      – user who owns the listing.
//	Title         – product name shown to bidders.
//	Category      – product category used for filtering (e.g. GRAIN, DAIRY).
//	Location      – pickup/delivery region used for filtering.
//	StartingPrice – minimum acceptable first bid, in currency units (>= 0).
//	Quantity      – amount of produce offered.
//	Unit          – unit of measure for Quantity (kg, crate, ...).
//	Deadline      – moment the auction closes; immutable except on reactivation.
//	Status        – current state (ACTIVE, ENDED, CANCELLED).
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last update timestamp.
type Listing struct {
	ID            uint64          // listings.id
	FarmerID      uint64          // listings.farmer_id
	Title         string          // listings.title
	Category      string          // listings.category
	Location      string          // listings.location
	StartingPrice decimal.Decimal // listings.starting_price
	Quantity      decimal.Decimal // listings.quantity
	Unit          string          // listings.unit
	Deadline      time.Time       // listings.deadline
	Status        string          // listings.status
	CreatedAt     time.Time       // listings.created_at
	UpdatedAt     time.Time       // listings.updated_at
}
