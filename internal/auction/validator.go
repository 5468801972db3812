package auction

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/farm-live-bidding/internal/model"
)

// MinimumBid computes the smallest acceptable bid for a room: the
// current highest bid plus the configured increment, or the listing's
// starting price when no bid has been placed yet.
func MinimumBid(listing *model.Listing, highest *model.Bid, increment decimal.Decimal) decimal.Decimal {
	if highest == nil {
		return listing.StartingPrice
	}
	return highest.Amount.Add(increment)
}

// ValidateBid decides whether a proposed bid is admissible given the
// current auction state.  It has no side effects and is the single
// validation path for both HTTP and WebSocket submissions, so the two
// entry points can never drift apart on rules or increment constants.
// Rules are applied in order: role, room/listing activity, deadline,
// then amount against MinimumBid.  A nil return means the bid is
// admissible.
func ValidateBid(listing *model.Listing, room *model.AuctionRoom, highest *model.Bid, bidderRole string, amount decimal.Decimal, increment decimal.Decimal, now time.Time) error {
	if bidderRole != model.RoleBuyer {
		return ErrForbiddenRole
	}
	if !room.IsActive || listing.Status != model.ListingStatusActive {
		return ErrRoomInactive
	}
	// The deadline is re-checked at submission time; an expired room is
	// rejected even when the sweeper has not closed it yet.
	if now.After(room.EndsAt) {
		return ErrAuctionEnded
	}
	min := MinimumBid(listing, highest, increment)
	if amount.LessThan(min) {
		return &BidTooLowError{Minimum: min}
	}
	return nil
}
