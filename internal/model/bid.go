package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid is an immutable record of one offer on a listing.  Only the
// IsWinning flag ever changes after insertion: when a higher bid is
// accepted the previous holder's flag is cleared in the same
// transaction that inserts the new bid, so at most one bid per
// listing is marked winning while the room is active.  Bids are
// never deleted.
//
// Fields:
//
//	ID        – primary key identifier.
//	ListingID – listing the bid was placed on.
//	BidderID  – user who placed the bid.
//	Amount    – offered price in currency units (>= 0).
//	IsWinning – whether this bid is the current (or final) highest.
//	CreatedAt – submission timestamp.
type Bid struct {
	ID        uint64          // bids.id
	ListingID uint64          // bids.listing_id
	BidderID  uint64          // bids.bidder_id
	Amount    decimal.Decimal // bids.amount
	IsWinning bool            // bids.is_winning
	CreatedAt time.Time       // bids.created_at
}
