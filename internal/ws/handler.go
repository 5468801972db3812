package ws

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the marketplace frontend; origin
	// enforcement is handled by the deployment's reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades HTTP requests into hub-managed WebSocket sessions.
// The route is public: connections start anonymous and authenticate
// over the socket with an `authenticate` frame, mirroring how the
// frontend establishes its session before joining rooms.
func Handler(h *Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response.
			return nil
		}
		client := newClient(uuid.New().String(), conn)
		h.register(client)
		log.Printf("ws: client %s connected from %s", client.ID, c.RealIP())
		return nil
	}
}
