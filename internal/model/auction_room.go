package model

import "time"

// AuctionRoom holds the live state for one listing's auction.  There
// is at most one room per listing (unique key on listing_id).  Rooms
// are never deleted: closing an auction flips IsActive to false and
// records the winning bid, and a re-submitted listing reactivates the
// same room with a new EndsAt.  The invariant EndsAt > StartedAt must
// hold at all times.
//
// Fields:
//
//	ID           – primary key identifier.
//	ListingID    – listing this room auctions (unique).
//	IsActive     – whether the room currently accepts bids.
//	StartedAt    – when the auction (or its latest reactivation) began.
//	EndsAt       – deadline mirrored from the listing.
//	CurrentBidID – reference to the current highest bid (nil before the first bid).
//	WinningBidID – reference to the final winning bid, set only at closure.
//	CreatedAt    – creation timestamp.
//	UpdatedAt    – last update timestamp.
type AuctionRoom struct {
	ID           uint64    // auction_rooms.id
	ListingID    uint64    // auction_rooms.listing_id
	IsActive     bool      // auction_rooms.is_active
	StartedAt    time.Time // auction_rooms.started_at
	EndsAt       time.Time // auction_rooms.ends_at
	CurrentBidID *uint64   // auction_rooms.current_bid_id (nullable)
	WinningBidID *uint64   // auction_rooms.winning_bid_id (nullable)
	CreatedAt    time.Time // auction_rooms.created_at
	UpdatedAt    time.Time // auction_rooms.updated_at
}

// RoomParticipant records that a user has joined an auction room.  The
// unique key on (room_id, user_id) makes joins idempotent; membership
// order carries no meaning.
//
// Fields:
//
//	ID       – primary key identifier.
//	RoomID   – room the user joined.
//	UserID   – joining user.
//	JoinedAt – first time the user joined this room.
type RoomParticipant struct {
	ID       uint64    // room_participants.id
	RoomID   uint64    // room_participants.room_id
	UserID   uint64    // room_participants.user_id
	JoinedAt time.Time // room_participants.joined_at
}
