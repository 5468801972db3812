package queue_publisher

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/farm-live-bidding/internal/auction"
	"github.com/iliyamo/farm-live-bidding/internal/queue"
	"github.com/iliyamo/farm-live-bidding/internal/repository"
)

// Archiver turns closed-auction snapshots into AuctionClosedEvent
// messages on the broker. It satisfies the coordinator's archiver
// contract; publish failures are logged and swallowed because archival
// must never block or fail a room closure.
type Archiver struct {
	bids *repository.BidRepo
}

// NewArchiver builds an Archiver. The bid repository is used to count
// the bids a listing received before the event is published.
func NewArchiver(bids *repository.BidRepo) *Archiver {
	return &Archiver{bids: bids}
}

// AuctionClosed builds and publishes the archival event for a closed room.
func (a *Archiver) AuctionClosed(ctx context.Context, snap *auction.RoomSnapshot) {
	ev := queue.AuctionClosedEvent{
		ListingID:     snap.Listing.ID,
		RoomID:        snap.Room.ID,
		FarmerID:      snap.Listing.FarmerID,
		ProduceName:   snap.Listing.Title,
		Category:      snap.Listing.Category,
		StartingPrice: snap.Listing.StartingPrice.String(),
		ClosedAt:      time.Now().UTC().Format("2006-01-02 15:04:05"),
	}
	if snap.Highest != nil {
		ev.WinningBidID = snap.Highest.ID
		ev.WinningBuyerID = snap.Highest.BidderID
		ev.WinningAmount = snap.Highest.Amount.String()
	}
	if n, err := a.bids.CountByListing(ctx, snap.Listing.ID); err == nil {
		ev.TotalBids = uint64(n)
	} else {
		log.Printf("archiver: count bids for listing %d failed: %v", snap.Listing.ID, err)
	}
	if err := PublishAuctionClosed(ctx, ev); err != nil {
		log.Printf("archiver: publish auction.closed for room %d failed: %v", snap.Room.ID, err)
	}
}
