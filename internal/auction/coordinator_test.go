package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/farm-live-bidding/internal/model"
)

// fakeLedger is an in-memory Ledger with the same atomicity guarantees
// as the SQL implementation: CommitBid and CloseRoom mutate all state
// under one mutex or not at all.
type fakeLedger struct {
	mu           sync.Mutex
	listings     map[uint64]*model.Listing
	rooms        map[uint64]*model.AuctionRoom
	bids         []*model.Bid
	nextBidID    uint64
	participants map[uint64]map[uint64]bool

	commitFailures int            // CommitBid fails this many times before succeeding
	closeFailures  map[uint64]int // per-room CloseRoom failures before success
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		listings:      make(map[uint64]*model.Listing),
		rooms:         make(map[uint64]*model.AuctionRoom),
		participants:  make(map[uint64]map[uint64]bool),
		closeFailures: make(map[uint64]int),
	}
}

// addAuction seeds one listing with its room and returns the room ID.
func (f *fakeLedger) addAuction(id uint64, startingPrice string, endsAt time.Time) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings[id] = &model.Listing{
		ID:            id,
		FarmerID:      900 + id,
		Title:         "lot",
		StartingPrice: dec(startingPrice),
		Status:        model.ListingStatusActive,
		Deadline:      endsAt,
	}
	f.rooms[id] = &model.AuctionRoom{
		ID:        id,
		ListingID: id,
		IsActive:  true,
		StartedAt: endsAt.Add(-time.Hour),
		EndsAt:    endsAt,
	}
	return id
}

func (f *fakeLedger) highestLocked(listingID uint64) *model.Bid {
	var best *model.Bid
	for _, b := range f.bids {
		if b.ListingID == listingID && b.IsWinning {
			best = b
		}
	}
	return best
}

func (f *fakeLedger) RoomSnapshot(ctx context.Context, roomID uint64) (*RoomSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	roomCopy := *room
	listingCopy := *f.listings[room.ListingID]
	snap := &RoomSnapshot{Listing: &listingCopy, Room: &roomCopy}
	if h := f.highestLocked(room.ListingID); h != nil {
		hc := *h
		snap.Highest = &hc
	}
	return snap, nil
}

func (f *fakeLedger) CommitBid(ctx context.Context, room *model.AuctionRoom, bid *model.Bid) (*model.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitFailures > 0 {
		f.commitFailures--
		return nil, errors.New("deadlock detected")
	}
	for _, b := range f.bids {
		if b.ListingID == bid.ListingID {
			b.IsWinning = false
		}
	}
	f.nextBidID++
	stored := *bid
	stored.ID = f.nextBidID
	stored.IsWinning = true
	f.bids = append(f.bids, &stored)

	id := stored.ID
	f.rooms[room.ID].CurrentBidID = &id
	if f.participants[room.ID] == nil {
		f.participants[room.ID] = make(map[uint64]bool)
	}
	f.participants[room.ID][bid.BidderID] = true

	result := stored
	return &result, nil
}

func (f *fakeLedger) CloseRoom(ctx context.Context, room *model.AuctionRoom) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.closeFailures[room.ID]; n > 0 {
		f.closeFailures[room.ID] = n - 1
		return errors.New("connection reset")
	}
	r := f.rooms[room.ID]
	r.IsActive = false
	if h := f.highestLocked(r.ListingID); h != nil {
		id := h.ID
		r.WinningBidID = &id
	}
	f.listings[r.ListingID].Status = model.ListingStatusEnded
	return nil
}

func (f *fakeLedger) ExpiredRoomIDs(ctx context.Context, now time.Time) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint64
	for id, r := range f.rooms {
		if r.IsActive && now.After(r.EndsAt) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeLedger) AddParticipant(ctx context.Context, roomID, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.participants[roomID] == nil {
		f.participants[roomID] = make(map[uint64]bool)
	}
	f.participants[roomID][userID] = true
	return nil
}

func (f *fakeLedger) RemoveParticipant(ctx context.Context, roomID, userID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.participants[roomID], userID)
	return nil
}

// winningBids returns all bids currently flagged winning for a listing.
func (f *fakeLedger) winningBids(listingID uint64) []*model.Bid {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Bid
	for _, b := range f.bids {
		if b.ListingID == listingID && b.IsWinning {
			out = append(out, b)
		}
	}
	return out
}

type broadcastCall struct {
	roomID  uint64
	event   string
	payload interface{}
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (r *recordingBroadcaster) Broadcast(roomID uint64, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, broadcastCall{roomID: roomID, event: event, payload: payload})
}

func (r *recordingBroadcaster) byEvent(event string) []broadcastCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []broadcastCall
	for _, c := range r.calls {
		if c.event == event {
			out = append(out, c)
		}
	}
	return out
}

type countingArchiver struct {
	mu    sync.Mutex
	snaps []*RoomSnapshot
}

func (a *countingArchiver) AuctionClosed(ctx context.Context, snap *RoomSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snaps = append(a.snaps, snap)
}

func buyer(id uint64) Identity {
	return Identity{ID: id, Name: "buyer", Role: model.RoleBuyer}
}

func newTestCoordinator(ledger Ledger, bcast Broadcaster, archiver Archiver) *Coordinator {
	return NewCoordinator(ledger, bcast, archiver, Options{
		MinIncrement: dec("5"),
		LockWait:     200 * time.Millisecond,
	})
}

func TestSubmitBidAcceptsAndBroadcasts(t *testing.T) {
	ledger := newFakeLedger()
	roomID := ledger.addAuction(1, "50", time.Now().UTC().Add(time.Hour))
	bcast := &recordingBroadcaster{}
	coord := newTestCoordinator(ledger, bcast, nil)

	bid, err := coord.SubmitBid(context.Background(), roomID, buyer(7), dec("50"))
	require.NoError(t, err)
	assert.NotZero(t, bid.ID)
	assert.True(t, bid.IsWinning)
	assert.True(t, bid.Amount.Equal(dec("50")))

	placed := bcast.byEvent(EventBidPlaced)
	require.Len(t, placed, 1)
	ev, ok := placed[0].payload.(BidPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, roomID, ev.RoomID)
	assert.Equal(t, uint64(7), ev.BidderID)
	assert.True(t, ev.Amount.Equal(dec("50")))
}

func TestSubmitBidMonotonicHighest(t *testing.T) {
	ledger := newFakeLedger()
	roomID := ledger.addAuction(1, "50", time.Now().UTC().Add(time.Hour))
	bcast := &recordingBroadcaster{}
	coord := newTestCoordinator(ledger, bcast, nil)
	ctx := context.Background()

	_, err := coord.SubmitBid(ctx, roomID, buyer(1), dec("100"))
	require.NoError(t, err)

	// Just under highest+increment is rejected with the exact minimum.
	_, err = coord.SubmitBid(ctx, roomID, buyer(2), dec("104.99"))
	var tooLow *BidTooLowError
	require.ErrorAs(t, err, &tooLow)
	assert.True(t, tooLow.Minimum.Equal(dec("105")))

	// Exactly highest+increment is admitted.
	_, err = coord.SubmitBid(ctx, roomID, buyer(2), dec("105"))
	require.NoError(t, err)

	// The winning flag moved; at most one bid is winning at any time.
	winning := ledger.winningBids(1)
	require.Len(t, winning, 1)
	assert.True(t, winning[0].Amount.Equal(dec("105")))
	assert.Equal(t, uint64(2), winning[0].BidderID)

	// Rejections are never broadcast.
	assert.Len(t, bcast.byEvent(EventBidPlaced), 2)
}

func TestSubmitBidConcurrentSameRoom(t *testing.T) {
	ledger := newFakeLedger()
	roomID := ledger.addAuction(1, "50", time.Now().UTC().Add(time.Hour))
	coord := newTestCoordinator(ledger, &recordingBroadcaster{}, nil)
	ctx := context.Background()

	// Two buyers race with the same amount; the room lock serializes
	// them, so exactly one is admitted and the other sees the raised
	// minimum.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coord.SubmitBid(ctx, roomID, buyer(uint64(i+1)), dec("60"))
		}(i)
	}
	wg.Wait()

	var accepted, rejected int
	for _, err := range errs {
		var tooLow *BidTooLowError
		switch {
		case err == nil:
			accepted++
		case errors.As(err, &tooLow):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
	assert.Len(t, ledger.winningBids(1), 1)
}

func TestSubmitBidRetriesCommitOnce(t *testing.T) {
	ledger := newFakeLedger()
	roomID := ledger.addAuction(1, "50", time.Now().UTC().Add(time.Hour))
	ledger.commitFailures = 1
	bcast := &recordingBroadcaster{}
	coord := newTestCoordinator(ledger, bcast, nil)

	bid, err := coord.SubmitBid(context.Background(), roomID, buyer(3), dec("55"))
	require.NoError(t, err)
	assert.True(t, bid.IsWinning)
	assert.Len(t, bcast.byEvent(EventBidPlaced), 1)
}

func TestSubmitBidCommitFailureAfterRetry(t *testing.T) {
	ledger := newFakeLedger()
	roomID := ledger.addAuction(1, "50", time.Now().UTC().Add(time.Hour))
	ledger.commitFailures = 2
	bcast := &recordingBroadcaster{}
	coord := newTestCoordinator(ledger, bcast, nil)

	_, err := coord.SubmitBid(context.Background(), roomID, buyer(3), dec("55"))
	require.Error(t, err)
	assert.False(t, IsRejection(err))
	assert.Empty(t, bcast.byEvent(EventBidPlaced))
	assert.Empty(t, ledger.winningBids(1))
}

func TestSubmitBidRoomBusy(t *testing.T) {
	ledger := newFakeLedger()
	roomID := ledger.addAuction(1, "50", time.Now().UTC().Add(time.Hour))
	coord := NewCoordinator(ledger, &recordingBroadcaster{}, nil, Options{
		MinIncrement: dec("5"),
		LockWait:     20 * time.Millisecond,
	})

	release, err := coord.lockRoom(context.Background(), roomID)
	require.NoError(t, err)
	defer release()

	_, err = coord.SubmitBid(context.Background(), roomID, buyer(4), dec("55"))
	assert.ErrorIs(t, err, ErrRoomBusy)
}

func TestSubmitBidUnknownRoom(t *testing.T) {
	coord := newTestCoordinator(newFakeLedger(), &recordingBroadcaster{}, nil)
	_, err := coord.SubmitBid(context.Background(), 42, buyer(1), dec("55"))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSubmitBidAfterDeadlineBeforeSweep(t *testing.T) {
	ledger := newFakeLedger()
	// Deadline already passed but the sweeper has not closed the room.
	roomID := ledger.addAuction(1, "50", time.Now().UTC().Add(-time.Minute))
	coord := newTestCoordinator(ledger, &recordingBroadcaster{}, nil)

	_, err := coord.SubmitBid(context.Background(), roomID, buyer(5), dec("60"))
	assert.ErrorIs(t, err, ErrAuctionEnded)
}

func TestCloseAuctionIdempotent(t *testing.T) {
	ledger := newFakeLedger()
	roomID := ledger.addAuction(1, "50", time.Now().UTC().Add(time.Hour))
	bcast := &recordingBroadcaster{}
	arch := &countingArchiver{}
	coord := newTestCoordinator(ledger, bcast, arch)
	ctx := context.Background()

	_, err := coord.SubmitBid(ctx, roomID, buyer(8), dec("70"))
	require.NoError(t, err)

	require.NoError(t, coord.CloseAuction(ctx, roomID))
	require.NoError(t, coord.CloseAuction(ctx, roomID))
	require.NoError(t, coord.CloseAuction(ctx, roomID))

	// One terminal broadcast and one archival no matter how many closes.
	ended := bcast.byEvent(EventBiddingEnded)
	require.Len(t, ended, 1)
	ev, ok := ended[0].payload.(BiddingEndedEvent)
	require.True(t, ok)
	require.NotNil(t, ev.WinnerID)
	assert.Equal(t, uint64(8), *ev.WinnerID)
	require.NotNil(t, ev.WinningAmount)
	assert.True(t, ev.WinningAmount.Equal(dec("70")))
	assert.Len(t, arch.snaps, 1)

	// Bids after closure are rejected.
	_, err = coord.SubmitBid(ctx, roomID, buyer(9), dec("80"))
	assert.ErrorIs(t, err, ErrRoomInactive)
}

func TestCloseAuctionWithoutBids(t *testing.T) {
	ledger := newFakeLedger()
	roomID := ledger.addAuction(1, "50", time.Now().UTC().Add(time.Hour))
	bcast := &recordingBroadcaster{}
	coord := newTestCoordinator(ledger, bcast, nil)

	require.NoError(t, coord.CloseAuction(context.Background(), roomID))

	ended := bcast.byEvent(EventBiddingEnded)
	require.Len(t, ended, 1)
	ev := ended[0].payload.(BiddingEndedEvent)
	assert.Nil(t, ev.WinningBidID)
	assert.Nil(t, ev.WinnerID)
	assert.Nil(t, ev.WinningAmount)
}

func TestCloseAuctionRetriesOnce(t *testing.T) {
	ledger := newFakeLedger()
	roomID := ledger.addAuction(1, "50", time.Now().UTC().Add(time.Hour))
	ledger.closeFailures[roomID] = 1
	bcast := &recordingBroadcaster{}
	coord := newTestCoordinator(ledger, bcast, nil)

	require.NoError(t, coord.CloseAuction(context.Background(), roomID))
	assert.Len(t, bcast.byEvent(EventBiddingEnded), 1)
}

func TestJoinAndLeave(t *testing.T) {
	ledger := newFakeLedger()
	roomID := ledger.addAuction(1, "50", time.Now().UTC().Add(time.Hour))
	bcast := &recordingBroadcaster{}
	coord := newTestCoordinator(ledger, bcast, nil)
	ctx := context.Background()

	who := Identity{ID: 11, Name: "ada", Role: model.RoleBuyer}
	snap, err := coord.Join(ctx, roomID, who)
	require.NoError(t, err)
	assert.Equal(t, roomID, snap.Room.ID)
	assert.True(t, ledger.participants[roomID][11])
	require.Len(t, bcast.byEvent(EventUserJoined), 1)

	require.NoError(t, coord.Leave(ctx, roomID, who))
	assert.False(t, ledger.participants[roomID][11])
	require.Len(t, bcast.byEvent(EventUserLeft), 1)
}
