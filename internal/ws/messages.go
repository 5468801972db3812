// Package ws implements the persistent-connection layer: WebSocket
// session handling, room presence and event fan-out for live bidding.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Client-to-server event names.
const (
	EventAuthenticate = "authenticate"
	EventJoinRoom     = "join-bidding-room"
	EventLeaveRoom    = "leave-bidding-room"
	EventPlaceBid     = "place-bid"
)

// Server-to-client event names not produced by the coordinator.
const (
	EventAuthenticated = "authenticated"
	EventAuthError     = "authentication_error"
	EventRoomJoined    = "room-joined"
	EventError         = "error"
)

// Envelope is the wire frame for every message in both directions:
// an event name plus an event-specific JSON payload.  Payloads are
// parsed into their typed form at this boundary before anything is
// dispatched into the coordinator.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AuthenticatePayload carries the bearer token for the authenticate
// event.
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// RoomPayload identifies the room for join and leave events.
type RoomPayload struct {
	RoomID uint64 `json:"room_id"`
}

// PlaceBidPayload carries a bid submission.  Amount accepts both JSON
// numbers and numeric strings.
type PlaceBidPayload struct {
	RoomID uint64          `json:"room_id"`
	Amount decimal.Decimal `json:"amount"`
}

// ErrorPayload is the body of server error events.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ErrUnknownEvent is returned when a frame names an event the server
// does not handle.
var ErrUnknownEvent = errors.New("unknown event")

// ParseEnvelope decodes and minimally validates one incoming frame.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Event == "" {
		return nil, errors.New("missing event name")
	}
	return &env, nil
}

// DecodeData unmarshals an envelope payload into its typed form and
// rejects frames whose payload is absent.
func DecodeData(env *Envelope, dst interface{}) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("event %q requires a data payload", env.Event)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("invalid payload for event %q: %w", env.Event, err)
	}
	return nil
}

// Encode builds an outgoing frame.  Marshal failures are programmer
// errors on our own payload types, so they surface as an error event
// body rather than a dropped frame.
func Encode(event string, data interface{}) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		payload, _ = json.Marshal(ErrorPayload{Message: "internal encoding error"})
		event = EventError
	}
	out, _ := json.Marshal(Envelope{Event: event, Data: payload})
	return out
}
