package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/farm-live-bidding/internal/auction"
	"github.com/iliyamo/farm-live-bidding/internal/model"
)

// AuctionLedger composes the listing, room and bid repositories into
// the persistence boundary the coordinator writes through
// (auction.Ledger).  Every mutating operation runs in a single
// transaction so a bid or a closure either commits completely or not
// at all.
type AuctionLedger struct {
	db       *sql.DB
	listings *ListingRepo
	rooms    *RoomRepo
	bids     *BidRepo
}

// NewAuctionLedger builds an AuctionLedger over the shared database
// handle.
func NewAuctionLedger(db *sql.DB, listings *ListingRepo, rooms *RoomRepo, bids *BidRepo) *AuctionLedger {
	return &AuctionLedger{db: db, listings: listings, rooms: rooms, bids: bids}
}

// RoomSnapshot loads the room, its listing and the current highest
// bid.  Missing rooms map to auction.ErrRoomNotFound so the coordinator
// and its callers never see repository sentinels.
func (l *AuctionLedger) RoomSnapshot(ctx context.Context, roomID uint64) (*auction.RoomSnapshot, error) {
	room, err := l.rooms.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			return nil, auction.ErrRoomNotFound
		}
		return nil, fmt.Errorf("load room: %w", err)
	}
	listing, err := l.listings.GetByID(ctx, room.ListingID)
	if err != nil {
		return nil, fmt.Errorf("load listing: %w", err)
	}
	snap := &auction.RoomSnapshot{Listing: listing, Room: room}
	if room.CurrentBidID != nil {
		bid, err := l.bids.GetByID(ctx, *room.CurrentBidID)
		if err != nil {
			return nil, fmt.Errorf("load current bid: %w", err)
		}
		snap.Highest = bid
	}
	return snap, nil
}

// CommitBid performs the atomic bid acceptance: clear the previous
// winning flag, insert the new bid as winning, point the room at it
// and record the bidder as a participant.  The caller (coordinator)
// holds the per-room lock, so no other writer races this transaction.
func (l *AuctionLedger) CommitBid(ctx context.Context, room *model.AuctionRoom, bid *model.Bid) (*model.Bid, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := l.bids.ClearWinningTx(ctx, tx, bid.ListingID); err != nil {
		return nil, fmt.Errorf("clear winning flag: %w", err)
	}
	if err := l.bids.InsertTx(ctx, tx, bid); err != nil {
		return nil, fmt.Errorf("insert bid: %w", err)
	}
	if err := l.rooms.SetCurrentBidTx(ctx, tx, room.ID, bid.ID); err != nil {
		return nil, fmt.Errorf("update room: %w", err)
	}
	if err := l.rooms.AddParticipantTx(ctx, tx, room.ID, bid.BidderID); err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return bid, nil
}

// CloseRoom performs the atomic closure: deactivate the room, record
// the winning bid and mark the listing ended.
func (l *AuctionLedger) CloseRoom(ctx context.Context, room *model.AuctionRoom) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := l.rooms.CloseTx(ctx, tx, room.ID, room.CurrentBidID); err != nil {
		return fmt.Errorf("close room: %w", err)
	}
	if err := l.listings.MarkEndedTx(ctx, tx, room.ListingID); err != nil {
		return fmt.Errorf("mark listing ended: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// ExpiredRoomIDs lists active rooms past their deadline.
func (l *AuctionLedger) ExpiredRoomIDs(ctx context.Context, now time.Time) ([]uint64, error) {
	return l.rooms.ExpiredRoomIDs(ctx, now)
}

// AddParticipant records room membership (idempotent).
func (l *AuctionLedger) AddParticipant(ctx context.Context, roomID, userID uint64) error {
	return l.rooms.AddParticipant(ctx, roomID, userID)
}

// RemoveParticipant drops room membership.
func (l *AuctionLedger) RemoveParticipant(ctx context.Context, roomID, userID uint64) error {
	return l.rooms.RemoveParticipant(ctx, roomID, userID)
}
