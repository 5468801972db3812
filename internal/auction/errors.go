// Package auction implements the live bidding core: bid validation,
// the per-room coordinator that serializes bid acceptance, and the
// expiry sweeper that closes auctions past their deadline.
package auction

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors returned by the validator and coordinator.  Handlers
// translate these into HTTP status codes and WebSocket error events;
// anything not in this list is treated as an internal failure and is
// reported generically to the caller.
var (
	// ErrForbiddenRole is returned when the bidder does not hold the
	// buyer role.  Farmers cannot bid, including on their own listings.
	ErrForbiddenRole = errors.New("only buyers may place bids")

	// ErrRoomInactive is returned when the room or its listing is no
	// longer active.
	ErrRoomInactive = errors.New("auction room is not active")

	// ErrAuctionEnded is returned when the submission arrives after the
	// room's deadline, or when bidding on an already closed room.
	ErrAuctionEnded = errors.New("auction has ended")

	// ErrRoomNotFound is returned when no room or listing exists for the
	// requested identifier.
	ErrRoomNotFound = errors.New("auction room not found")

	// ErrRoomBusy is returned when the per-room lock cannot be acquired
	// within the configured wait.  Callers may retry with backoff.
	ErrRoomBusy = errors.New("auction room is busy, retry")
)

// BidTooLowError rejects a bid below the current minimum.  It carries
// the minimum acceptable amount so callers can tell the bidder exactly
// what to offer next.
type BidTooLowError struct {
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low: minimum acceptable bid is %s", e.Minimum.StringFixed(2))
}

// IsRejection reports whether err is a user-caused validation failure
// rather than an infrastructure error.  Rejections are reported only to
// the submitting caller and never broadcast.
func IsRejection(err error) bool {
	var tooLow *BidTooLowError
	return errors.Is(err, ErrForbiddenRole) ||
		errors.Is(err, ErrRoomInactive) ||
		errors.Is(err, ErrAuctionEnded) ||
		errors.Is(err, ErrRoomNotFound) ||
		errors.As(err, &tooLow)
}
