package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iliyamo/farm-live-bidding/internal/auction"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait
	sendBuffer = 256
)

// Client is one WebSocket connection.  A client starts anonymous and
// may not join rooms or bid until an authenticate frame succeeds.  The
// send channel is buffered; a client that cannot drain it is dropped
// so one slow consumer never blocks a room broadcast.
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	closed   bool
	identity *auction.Identity
	rooms    map[uint64]struct{}
}

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		ID:    id,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[uint64]struct{}),
	}
}

// Identity returns the authenticated identity, or nil for anonymous
// connections.
func (c *Client) Identity() *auction.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Client) setIdentity(id auction.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = &id
}

// joinedRooms snapshots the rooms this connection is in, for
// disconnect cleanup.
func (c *Client) joinedRooms() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint64, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

func (c *Client) trackRoom(roomID uint64)   { c.mu.Lock(); c.rooms[roomID] = struct{}{}; c.mu.Unlock() }
func (c *Client) untrackRoom(roomID uint64) { c.mu.Lock(); delete(c.rooms, roomID); c.mu.Unlock() }

// enqueue hands a frame to the write pump without blocking.  It
// reports false when the client's buffer is full.  Frames for a
// client that has already shut down are dropped: a broadcast may hold
// a membership snapshot taken before the disconnect, and it must
// never reach the closed send channel.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// shutdown closes the send channel exactly once.  enqueue and
// shutdown share the client mutex, so no frame can race the close.
func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump pumps frames from the send channel to the connection and
// keeps it alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the connection and dispatches them until
// the connection dies, then triggers hub cleanup.
func (c *Client) readPump(h *Hub) {
	defer h.disconnect(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("ws: client %s read error: %v", c.ID, err)
			}
			return
		}
		h.dispatch(c, raw)
	}
}
