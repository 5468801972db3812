package ws

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/farm-live-bidding/internal/auction"
)

// dispatchTimeout bounds coordinator calls made on behalf of a socket
// frame so a stalled ledger cannot pin reader goroutines forever.
const dispatchTimeout = 5 * time.Second

// Authenticator verifies a bearer token and resolves it to an
// identity.  It is the same session gateway the HTTP middleware uses,
// injected so the hub never parses tokens itself.
type Authenticator func(token string) (auction.Identity, error)

// Hub tracks which clients are connected and which rooms they have
// joined, and fans coordinator events out to room members.  Presence
// is process-local and in-memory: it is rebuilt from scratch when the
// process restarts, and a disconnected bidder's committed bids remain
// valid.  Hub implements auction.Broadcaster.
type Hub struct {
	coord *auction.Coordinator
	auth  Authenticator

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[uint64]map[*Client]struct{}
}

// NewHub builds a Hub around the coordinator and token verifier.
func NewHub(coord *auction.Coordinator, auth Authenticator) *Hub {
	return &Hub{
		coord:   coord,
		auth:    auth,
		clients: make(map[*Client]struct{}),
		rooms:   make(map[uint64]map[*Client]struct{}),
	}
}

// register starts tracking a freshly upgraded connection and launches
// its pumps.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	go c.writePump()
	go c.readPump(h)
}

// disconnect drops all room memberships for a dead connection, firing
// a user-left broadcast for each room it was in.  This is best-effort
// cleanup, not tied to auction state.
func (h *Hub) disconnect(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	for roomID, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	h.mu.Unlock()

	c.shutdown()

	if id := c.Identity(); id != nil {
		for _, roomID := range c.joinedRooms() {
			ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
			if err := h.coord.Leave(ctx, roomID, *id); err != nil {
				log.Printf("ws: cleanup leave for client %s room %d failed: %v", c.ID, roomID, err)
			}
			cancel()
		}
	}
	log.Printf("ws: client %s disconnected", c.ID)
}

// Broadcast sends an event to every connection currently joined to the
// room.  Clients whose send buffer is full are dropped rather than
// allowed to stall the fan-out.
func (h *Hub) Broadcast(roomID uint64, event string, payload interface{}) {
	frame := Encode(event, payload)

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.enqueue(frame) {
			log.Printf("ws: client %s send buffer full, closing", c.ID)
			_ = c.conn.Close()
		}
	}
}

// unicast sends an event to a single connection.
func (h *Hub) unicast(c *Client, event string, payload interface{}) {
	if !c.enqueue(Encode(event, payload)) {
		_ = c.conn.Close()
	}
}

// roomMembers returns the identities currently connected to a room.
func (h *Hub) roomMembers(roomID uint64) []auction.Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]auction.Identity, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if id := c.Identity(); id != nil {
			out = append(out, *id)
		}
	}
	return out
}

// dispatch routes one parsed client frame.  Per-frame failures are
// answered on the offending connection only; they never touch other
// clients.
func (h *Hub) dispatch(c *Client, raw []byte) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		h.unicast(c, EventError, ErrorPayload{Message: err.Error()})
		return
	}
	switch env.Event {
	case EventAuthenticate:
		h.onAuthenticate(c, env)
	case EventJoinRoom:
		h.onJoin(c, env)
	case EventLeaveRoom:
		h.onLeave(c, env)
	case EventPlaceBid:
		h.onPlaceBid(c, env)
	default:
		h.unicast(c, EventError, ErrorPayload{Message: ErrUnknownEvent.Error() + ": " + env.Event})
	}
}

func (h *Hub) onAuthenticate(c *Client, env *Envelope) {
	var p AuthenticatePayload
	if err := DecodeData(env, &p); err != nil {
		h.unicast(c, EventAuthError, ErrorPayload{Message: err.Error()})
		return
	}
	identity, err := h.auth(p.Token)
	if err != nil {
		h.unicast(c, EventAuthError, ErrorPayload{Message: "invalid token"})
		return
	}
	c.setIdentity(identity)
	h.unicast(c, EventAuthenticated, identity)
}

// requireIdentity answers unauthenticated frames with an error event
// and reports whether dispatch may continue.
func (h *Hub) requireIdentity(c *Client) (auction.Identity, bool) {
	id := c.Identity()
	if id == nil {
		h.unicast(c, EventError, ErrorPayload{Message: "authenticate first"})
		return auction.Identity{}, false
	}
	return *id, true
}

// roomStatePayload is the private room-joined reply: the room and
// listing state plus everyone currently connected.
type roomStatePayload struct {
	RoomID        uint64             `json:"room_id"`
	ListingID     uint64             `json:"listing_id"`
	Title         string             `json:"title"`
	Quantity      decimal.Decimal    `json:"quantity"`
	Unit          string             `json:"unit"`
	StartingPrice decimal.Decimal    `json:"starting_price"`
	IsActive      bool               `json:"is_active"`
	EndsAt        time.Time          `json:"ends_at"`
	CurrentBid    *currentBidPayload `json:"current_bid,omitempty"`
	Participants  []auction.Identity `json:"participants"`
}

type currentBidPayload struct {
	BidID    uint64          `json:"bid_id"`
	BidderID uint64          `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
	PlacedAt time.Time       `json:"placed_at"`
}

func buildRoomState(snap *auction.RoomSnapshot, participants []auction.Identity) roomStatePayload {
	state := roomStatePayload{
		RoomID:        snap.Room.ID,
		ListingID:     snap.Listing.ID,
		Title:         snap.Listing.Title,
		Quantity:      snap.Listing.Quantity,
		Unit:          snap.Listing.Unit,
		StartingPrice: snap.Listing.StartingPrice,
		IsActive:      snap.Room.IsActive,
		EndsAt:        snap.Room.EndsAt,
		Participants:  participants,
	}
	if snap.Highest != nil {
		state.CurrentBid = &currentBidPayload{
			BidID:    snap.Highest.ID,
			BidderID: snap.Highest.BidderID,
			Amount:   snap.Highest.Amount,
			PlacedAt: snap.Highest.CreatedAt,
		}
	}
	return state
}

func (h *Hub) onJoin(c *Client, env *Envelope) {
	identity, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	var p RoomPayload
	if err := DecodeData(env, &p); err != nil {
		h.unicast(c, EventError, ErrorPayload{Message: err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	// Join broadcasts user-joined before this connection is added to
	// the room set, so only existing members hear the announcement.
	snap, err := h.coord.Join(ctx, p.RoomID, identity)
	if err != nil {
		h.unicast(c, EventError, ErrorPayload{Message: joinErrorMessage(err)})
		return
	}

	h.mu.Lock()
	members, ok := h.rooms[p.RoomID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[p.RoomID] = members
	}
	members[c] = struct{}{}
	h.mu.Unlock()
	c.trackRoom(p.RoomID)

	h.unicast(c, EventRoomJoined, buildRoomState(snap, h.roomMembers(p.RoomID)))
}

func (h *Hub) onLeave(c *Client, env *Envelope) {
	identity, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	var p RoomPayload
	if err := DecodeData(env, &p); err != nil {
		h.unicast(c, EventError, ErrorPayload{Message: err.Error()})
		return
	}

	h.mu.Lock()
	if members, ok := h.rooms[p.RoomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, p.RoomID)
		}
	}
	h.mu.Unlock()
	c.untrackRoom(p.RoomID)

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()
	if err := h.coord.Leave(ctx, p.RoomID, identity); err != nil {
		h.unicast(c, EventError, ErrorPayload{Message: "failed to leave room"})
	}
}

func (h *Hub) onPlaceBid(c *Client, env *Envelope) {
	identity, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	var p PlaceBidPayload
	if err := DecodeData(env, &p); err != nil {
		h.unicast(c, EventError, ErrorPayload{Message: err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	// Acceptance is announced through the room broadcast; only
	// failures are reported back on this connection.
	if _, err := h.coord.SubmitBid(ctx, p.RoomID, identity, p.Amount); err != nil {
		h.unicast(c, EventError, ErrorPayload{Message: bidErrorMessage(err)})
	}
}

// joinErrorMessage maps join failures to user-facing text.
func joinErrorMessage(err error) string {
	if errors.Is(err, auction.ErrRoomNotFound) {
		return auction.ErrRoomNotFound.Error()
	}
	return "failed to join room"
}

// bidErrorMessage maps submission failures to user-facing text.
// Validation rejections carry their own reason (including the minimum
// acceptable bid); infrastructure errors stay generic.
func bidErrorMessage(err error) string {
	switch {
	case auction.IsRejection(err):
		return err.Error()
	case errors.Is(err, auction.ErrRoomBusy):
		return auction.ErrRoomBusy.Error()
	default:
		return "failed to place bid"
	}
}
