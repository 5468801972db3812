// Package queue defines message payloads exchanged over the message broker.
package queue

// AuctionClosedEvent is published when an auction room is closed, either by
// deadline sweep or by an explicit close. It carries the final outcome so
// downstream consumers can archive, notify, or feed analytics without
// querying the primary database.
type AuctionClosedEvent struct {
	ListingID      uint64 `json:"listing_id"`
	RoomID         uint64 `json:"room_id"`
	FarmerID       uint64 `json:"farmer_id"`
	ProduceName    string `json:"produce_name"`
	Category       string `json:"category"`
	StartingPrice  string `json:"starting_price"`
	WinningBidID   uint64 `json:"winning_bid_id,omitempty"`
	WinningBuyerID uint64 `json:"winning_buyer_id,omitempty"`
	WinningAmount  string `json:"winning_amount,omitempty"`
	TotalBids      uint64 `json:"total_bids"`
	ClosedAt       string `json:"closed_at"`
}
