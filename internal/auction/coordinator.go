package auction

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/farm-live-bidding/internal/model"
)

// Identity describes an authenticated participant as resolved by the
// session gateway.  It is carried through join/leave/bid operations
// and echoed in broadcast payloads.
type Identity struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// RoomSnapshot is the state the coordinator needs to admit a bid or
// close a room: the listing, the room row and the current highest bid
// (nil before the first accepted bid).
type RoomSnapshot struct {
	Listing *model.Listing
	Room    *model.AuctionRoom
	Highest *model.Bid
}

// Ledger is the persistence boundary all auction writes pass through.
// Implementations must make CommitBid and CloseRoom atomic: either
// every row change commits or none do.
type Ledger interface {
	// RoomSnapshot loads the room, its listing and the current highest
	// bid.  It returns ErrRoomNotFound when the room does not exist.
	RoomSnapshot(ctx context.Context, roomID uint64) (*RoomSnapshot, error)

	// CommitBid atomically clears the previous winning flag, inserts
	// the new bid with is_winning set, points the room at it and adds
	// the bidder to the participant set.  It returns the stored bid.
	CommitBid(ctx context.Context, room *model.AuctionRoom, bid *model.Bid) (*model.Bid, error)

	// CloseRoom atomically deactivates the room, records the winning
	// bid (when one exists) and marks the listing ended.
	CloseRoom(ctx context.Context, room *model.AuctionRoom) error

	// ExpiredRoomIDs lists rooms that are still active but whose
	// deadline has passed.  Used by the expiry sweeper.
	ExpiredRoomIDs(ctx context.Context, now time.Time) ([]uint64, error)

	// AddParticipant records room membership; repeated calls for the
	// same user are no-ops.  RemoveParticipant undoes it.
	AddParticipant(ctx context.Context, roomID, userID uint64) error
	RemoveParticipant(ctx context.Context, roomID, userID uint64) error
}

// Broadcaster fans an event out to every connection currently joined
// to a room.  Delivery is best effort: a failed or missed broadcast
// never rolls back committed auction state.
type Broadcaster interface {
	Broadcast(roomID uint64, event string, payload interface{})
}

// Archiver receives the outcome of a closed auction for durable
// archival outside the request path.  Failures are logged, not
// propagated.
type Archiver interface {
	AuctionClosed(ctx context.Context, snap *RoomSnapshot)
}

// Broadcast event names emitted by the coordinator.  The WebSocket
// layer forwards them verbatim to clients.
const (
	EventBidPlaced    = "bid-placed"
	EventBiddingEnded = "bidding-ended"
	EventUserJoined   = "user-joined"
	EventUserLeft     = "user-left"
)

// BidPlacedEvent is broadcast to every room member after a bid commits.
type BidPlacedEvent struct {
	RoomID     uint64          `json:"room_id"`
	BidID      uint64          `json:"bid_id"`
	Amount     decimal.Decimal `json:"amount"`
	BidderID   uint64          `json:"bidder_id"`
	BidderName string          `json:"bidder_name"`
	PlacedAt   time.Time       `json:"placed_at"`
}

// BiddingEndedEvent is broadcast exactly once when a room closes.  The
// winning fields are omitted when the auction ended without bids.
type BiddingEndedEvent struct {
	RoomID        uint64           `json:"room_id"`
	ListingID     uint64           `json:"listing_id"`
	WinningBidID  *uint64          `json:"winning_bid_id,omitempty"`
	WinningAmount *decimal.Decimal `json:"winning_amount,omitempty"`
	WinnerID      *uint64          `json:"winner_id,omitempty"`
	EndedAt       time.Time        `json:"ended_at"`
}

// Options tunes coordinator behavior.  MinIncrement is the configured
// minimum step over the current highest bid; LockWait bounds how long
// a submission waits for the per-room lock before failing with
// ErrRoomBusy.
type Options struct {
	MinIncrement decimal.Decimal
	LockWait     time.Duration

	// Now overrides the clock in tests.  Leave nil in production.
	Now func() time.Time
}

// Coordinator serializes bid acceptance per auction room and drives
// room lifecycle.  It is constructed once at process start with its
// ledger and broadcaster injected; all mutation of room and bid state
// funnels through it.
type Coordinator struct {
	ledger   Ledger
	bcast    Broadcaster
	archiver Archiver // optional
	opts     Options

	mu    sync.Mutex
	locks map[uint64]chan struct{} // roomID -> semaphore of capacity 1
}

// NewCoordinator builds a Coordinator.  The archiver may be nil.
func NewCoordinator(ledger Ledger, bcast Broadcaster, archiver Archiver, opts Options) *Coordinator {
	if opts.LockWait <= 0 {
		opts.LockWait = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MinIncrement.IsZero() {
		opts.MinIncrement = decimal.NewFromInt(1)
	}
	return &Coordinator{
		ledger:   ledger,
		bcast:    bcast,
		archiver: archiver,
		opts:     opts,
		locks:    make(map[uint64]chan struct{}),
	}
}

// SetBroadcaster installs the fan-out sink.  The WebSocket hub needs
// the coordinator to construct itself, so the broadcaster is attached
// after both exist, before any traffic is served.
func (c *Coordinator) SetBroadcaster(b Broadcaster) {
	c.bcast = b
}

// broadcast fans an event out when a broadcaster is attached.
func (c *Coordinator) broadcast(roomID uint64, event string, payload interface{}) {
	if c.bcast != nil {
		c.bcast.Broadcast(roomID, event, payload)
	}
}

// sem returns the lazily created semaphore for a room.  Rooms lock
// independently so bids on different rooms proceed in parallel.
func (c *Coordinator) sem(roomID uint64) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.locks[roomID]
	if !ok {
		s = make(chan struct{}, 1)
		c.locks[roomID] = s
	}
	return s
}

// lockRoom acquires the room's semaphore within the configured wait.
// The returned release function must be called exactly once.
func (c *Coordinator) lockRoom(ctx context.Context, roomID uint64) (func(), error) {
	s := c.sem(roomID)
	timer := time.NewTimer(c.opts.LockWait)
	defer timer.Stop()
	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-timer.C:
		return nil, ErrRoomBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SubmitBid validates and, if admissible, atomically records a bid for
// the given room, then broadcasts the new highest bid to all room
// members.  The read-validate-write sequence runs inside the per-room
// critical section, so two concurrent submissions for the same room
// can never both be admitted as winning.  Rejections are returned to
// the caller only and never broadcast.
func (c *Coordinator) SubmitBid(ctx context.Context, roomID uint64, bidder Identity, amount decimal.Decimal) (*model.Bid, error) {
	release, err := c.lockRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	defer release()

	snap, err := c.ledger.RoomSnapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}
	now := c.opts.Now()
	if err := ValidateBid(snap.Listing, snap.Room, snap.Highest, bidder.Role, amount, c.opts.MinIncrement, now); err != nil {
		return nil, err
	}

	bid := &model.Bid{
		ListingID: snap.Listing.ID,
		BidderID:  bidder.ID,
		Amount:    amount,
		IsWinning: true,
		CreatedAt: now.UTC(),
	}
	stored, err := c.ledger.CommitBid(ctx, snap.Room, bid)
	if err != nil {
		// One retry on infrastructure failure; the commit is atomic so a
		// failed attempt leaves no partial state behind.
		log.Printf("coordinator: commit bid for room %d failed, retrying: %v", roomID, err)
		stored, err = c.ledger.CommitBid(ctx, snap.Room, bid)
		if err != nil {
			return nil, fmt.Errorf("commit bid: %w", err)
		}
	}

	c.broadcast(roomID, EventBidPlaced, BidPlacedEvent{
		RoomID:     roomID,
		BidID:      stored.ID,
		Amount:     stored.Amount,
		BidderID:   bidder.ID,
		BidderName: bidder.Name,
		PlacedAt:   stored.CreatedAt,
	})
	return stored, nil
}

// CloseAuction transitions a room to its terminal state.  It is
// idempotent: closing an already closed room does nothing and emits no
// broadcast, so overlapping sweeper ticks and explicit closure calls
// are safe.  The per-room lock makes closure mutually exclusive with
// in-flight bid submissions.
func (c *Coordinator) CloseAuction(ctx context.Context, roomID uint64) error {
	release, err := c.lockRoom(ctx, roomID)
	if err != nil {
		return err
	}
	defer release()

	snap, err := c.ledger.RoomSnapshot(ctx, roomID)
	if err != nil {
		return err
	}
	if !snap.Room.IsActive {
		return nil
	}

	if err := c.ledger.CloseRoom(ctx, snap.Room); err != nil {
		log.Printf("coordinator: close room %d failed, retrying: %v", roomID, err)
		if err = c.ledger.CloseRoom(ctx, snap.Room); err != nil {
			return fmt.Errorf("close room: %w", err)
		}
	}

	ev := BiddingEndedEvent{
		RoomID:    roomID,
		ListingID: snap.Listing.ID,
		EndedAt:   c.opts.Now().UTC(),
	}
	if snap.Highest != nil {
		ev.WinningBidID = &snap.Highest.ID
		ev.WinningAmount = &snap.Highest.Amount
		ev.WinnerID = &snap.Highest.BidderID
	}
	c.broadcast(roomID, EventBiddingEnded, ev)

	if c.archiver != nil {
		c.archiver.AuctionClosed(ctx, snap)
	}
	return nil
}

// Join records room membership for a participant and announces the
// arrival to existing members.  Joining is idempotent and remains
// permitted on closed rooms so participants can view history.  The
// returned snapshot is the private room-joined reply for the joiner.
func (c *Coordinator) Join(ctx context.Context, roomID uint64, participant Identity) (*RoomSnapshot, error) {
	snap, err := c.ledger.RoomSnapshot(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := c.ledger.AddParticipant(ctx, roomID, participant.ID); err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}
	c.broadcast(roomID, EventUserJoined, participant)
	return snap, nil
}

// Leave removes a participant from the room's membership set and
// notifies remaining members.
func (c *Coordinator) Leave(ctx context.Context, roomID uint64, participant Identity) error {
	if err := c.ledger.RemoveParticipant(ctx, roomID, participant.ID); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	c.broadcast(roomID, EventUserLeft, participant)
	return nil
}
