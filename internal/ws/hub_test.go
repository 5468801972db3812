package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/farm-live-bidding/internal/auction"
	"github.com/iliyamo/farm-live-bidding/internal/model"
)

// stubLedger backs hub tests with a single in-memory auction room.
type stubLedger struct {
	listing *model.Listing
	room    *model.AuctionRoom
	highest *model.Bid
	nextID  uint64
}

func newStubLedger() *stubLedger {
	deadline := time.Now().UTC().Add(time.Hour)
	return &stubLedger{
		listing: &model.Listing{
			ID:            1,
			Title:         "cherry tomatoes",
			StartingPrice: decimal.NewFromInt(50),
			Quantity:      decimal.NewFromInt(200),
			Unit:          "kg",
			Status:        model.ListingStatusActive,
			Deadline:      deadline,
		},
		room: &model.AuctionRoom{ID: 1, ListingID: 1, IsActive: true, EndsAt: deadline},
	}
}

func (s *stubLedger) RoomSnapshot(ctx context.Context, roomID uint64) (*auction.RoomSnapshot, error) {
	if roomID != s.room.ID {
		return nil, auction.ErrRoomNotFound
	}
	return &auction.RoomSnapshot{Listing: s.listing, Room: s.room, Highest: s.highest}, nil
}

func (s *stubLedger) CommitBid(ctx context.Context, room *model.AuctionRoom, bid *model.Bid) (*model.Bid, error) {
	s.nextID++
	stored := *bid
	stored.ID = s.nextID
	s.highest = &stored
	return &stored, nil
}

func (s *stubLedger) CloseRoom(ctx context.Context, room *model.AuctionRoom) error {
	s.room.IsActive = false
	return nil
}

func (s *stubLedger) ExpiredRoomIDs(ctx context.Context, now time.Time) ([]uint64, error) {
	return nil, nil
}

func (s *stubLedger) AddParticipant(ctx context.Context, roomID, userID uint64) error    { return nil }
func (s *stubLedger) RemoveParticipant(ctx context.Context, roomID, userID uint64) error { return nil }

func newTestHub(t *testing.T) (*Hub, *stubLedger) {
	t.Helper()
	ledger := newStubLedger()
	coord := auction.NewCoordinator(ledger, nil, nil, auction.Options{
		MinIncrement: decimal.NewFromInt(5),
		LockWait:     time.Second,
	})
	hub := NewHub(coord, func(token string) (auction.Identity, error) {
		if token == "good-token" {
			return auction.Identity{ID: 7, Name: "ada", Role: model.RoleBuyer}, nil
		}
		return auction.Identity{}, errors.New("bad token")
	})
	coord.SetBroadcaster(hub)
	return hub, ledger
}

// connect registers a test client without real socket pumps.
func connect(hub *Hub, id string) *Client {
	c := newClient(id, nil)
	hub.mu.Lock()
	hub.clients[c] = struct{}{}
	hub.mu.Unlock()
	return c
}

// nextFrame pops one queued outgoing frame for the client.
func nextFrame(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	default:
		t.Fatal("no frame queued")
		return Envelope{}
	}
}

func noFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	default:
	}
}

func authenticate(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.dispatch(c, []byte(`{"event":"authenticate","data":{"token":"good-token"}}`))
	env := nextFrame(t, c)
	require.Equal(t, EventAuthenticated, env.Event)
}

func join(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.dispatch(c, []byte(`{"event":"join-bidding-room","data":{"room_id":1}}`))
	env := nextFrame(t, c)
	require.Equal(t, EventRoomJoined, env.Event)
}

func TestDispatchAuthenticate(t *testing.T) {
	hub, _ := newTestHub(t)
	c := connect(hub, "c1")

	hub.dispatch(c, []byte(`{"event":"authenticate","data":{"token":"good-token"}}`))
	env := nextFrame(t, c)
	assert.Equal(t, EventAuthenticated, env.Event)

	var id auction.Identity
	require.NoError(t, json.Unmarshal(env.Data, &id))
	assert.Equal(t, uint64(7), id.ID)
	assert.Equal(t, model.RoleBuyer, id.Role)
}

func TestDispatchAuthenticateBadToken(t *testing.T) {
	hub, _ := newTestHub(t)
	c := connect(hub, "c1")

	hub.dispatch(c, []byte(`{"event":"authenticate","data":{"token":"stolen"}}`))
	env := nextFrame(t, c)
	assert.Equal(t, EventAuthError, env.Event)
	assert.Nil(t, c.Identity())
}

func TestDispatchRequiresAuthentication(t *testing.T) {
	hub, _ := newTestHub(t)
	c := connect(hub, "c1")

	hub.dispatch(c, []byte(`{"event":"place-bid","data":{"room_id":1,"amount":"60"}}`))
	env := nextFrame(t, c)
	assert.Equal(t, EventError, env.Event)

	var p ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "authenticate first", p.Message)
}

func TestDispatchUnknownEvent(t *testing.T) {
	hub, _ := newTestHub(t)
	c := connect(hub, "c1")

	hub.dispatch(c, []byte(`{"event":"dance","data":{}}`))
	env := nextFrame(t, c)
	assert.Equal(t, EventError, env.Event)
}

func TestJoinAnnouncesToExistingMembersOnly(t *testing.T) {
	hub, _ := newTestHub(t)
	first := connect(hub, "c1")
	authenticate(t, hub, first)
	join(t, hub, first)

	second := connect(hub, "c2")
	authenticate(t, hub, second)
	hub.dispatch(second, []byte(`{"event":"join-bidding-room","data":{"room_id":1}}`))

	// The existing member hears the arrival.
	env := nextFrame(t, first)
	assert.Equal(t, auction.EventUserJoined, env.Event)

	// The joiner gets the private room state and not its own announcement.
	env = nextFrame(t, second)
	require.Equal(t, EventRoomJoined, env.Event)
	var state roomStatePayload
	require.NoError(t, json.Unmarshal(env.Data, &state))
	assert.Equal(t, uint64(1), state.RoomID)
	assert.Equal(t, "cherry tomatoes", state.Title)
	assert.Len(t, state.Participants, 2)
	noFrame(t, second)
}

func TestJoinUnknownRoom(t *testing.T) {
	hub, _ := newTestHub(t)
	c := connect(hub, "c1")
	authenticate(t, hub, c)

	hub.dispatch(c, []byte(`{"event":"join-bidding-room","data":{"room_id":99}}`))
	env := nextFrame(t, c)
	assert.Equal(t, EventError, env.Event)
}

func TestPlaceBidBroadcastsToRoom(t *testing.T) {
	hub, ledger := newTestHub(t)
	bidder := connect(hub, "c1")
	authenticate(t, hub, bidder)
	join(t, hub, bidder)

	watcher := connect(hub, "c2")
	authenticate(t, hub, watcher)
	join(t, hub, watcher)
	nextFrame(t, bidder) // user-joined for the watcher's arrival

	hub.dispatch(bidder, []byte(`{"event":"place-bid","data":{"room_id":1,"amount":"60"}}`))

	for _, c := range []*Client{bidder, watcher} {
		env := nextFrame(t, c)
		require.Equal(t, auction.EventBidPlaced, env.Event)
		var ev auction.BidPlacedEvent
		require.NoError(t, json.Unmarshal(env.Data, &ev))
		assert.Equal(t, "60", ev.Amount.String())
		assert.Equal(t, uint64(7), ev.BidderID)
	}
	require.NotNil(t, ledger.highest)
	assert.True(t, ledger.highest.IsWinning)
}

func TestPlaceBidRejectionIsPrivate(t *testing.T) {
	hub, _ := newTestHub(t)
	bidder := connect(hub, "c1")
	authenticate(t, hub, bidder)
	join(t, hub, bidder)

	watcher := connect(hub, "c2")
	authenticate(t, hub, watcher)
	join(t, hub, watcher)
	nextFrame(t, bidder) // user-joined

	// Below the starting price: rejected, and only the bidder hears it.
	hub.dispatch(bidder, []byte(`{"event":"place-bid","data":{"room_id":1,"amount":"10"}}`))

	env := nextFrame(t, bidder)
	require.Equal(t, EventError, env.Event)
	var p ErrorPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Contains(t, p.Message, "minimum acceptable bid is 50.00")
	noFrame(t, watcher)
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub, _ := newTestHub(t)
	c := connect(hub, "c1")
	authenticate(t, hub, c)
	join(t, hub, c)

	hub.dispatch(c, []byte(`{"event":"leave-bidding-room","data":{"room_id":1}}`))

	hub.Broadcast(1, auction.EventBidPlaced, auction.BidPlacedEvent{RoomID: 1})
	noFrame(t, c)
	assert.Empty(t, c.joinedRooms())
}

func TestBroadcastRacesDisconnect(t *testing.T) {
	hub, _ := newTestHub(t)

	const roomSize = 300
	clients := make([]*Client, 0, roomSize)
	hub.mu.Lock()
	room := make(map[*Client]struct{})
	for i := 0; i < roomSize; i++ {
		c := newClient(strconv.Itoa(i), nil)
		hub.clients[c] = struct{}{}
		room[c] = struct{}{}
		clients = append(clients, c)
	}
	hub.rooms[1] = room
	hub.mu.Unlock()

	// Fan out to the whole room while members disconnect underneath
	// the broadcast's membership snapshot.  A frame enqueued against a
	// departed client must be dropped, not sent on its closed channel.
	const departures = 200
	for i := 0; i < departures; i++ {
		victim := clients[i]
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Broadcast(1, auction.EventBidPlaced, auction.BidPlacedEvent{RoomID: 1})
		}()
		go func() {
			defer wg.Done()
			hub.disconnect(victim)
		}()
		wg.Wait()
	}

	hub.mu.RLock()
	remaining := len(hub.rooms[1])
	hub.mu.RUnlock()
	assert.Equal(t, roomSize-departures, remaining)
}

func TestClientShutdownIsIdempotent(t *testing.T) {
	c := newClient("c1", nil)
	require.True(t, c.enqueue([]byte(`{"event":"before"}`)))

	c.shutdown()
	c.shutdown()

	// Late frames are dropped without escalation.
	assert.True(t, c.enqueue([]byte(`{"event":"after"}`)))

	raw, ok := <-c.send
	require.True(t, ok)
	assert.Contains(t, string(raw), "before")
	_, ok = <-c.send
	assert.False(t, ok)
}
