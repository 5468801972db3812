// Package handler exposes the HTTP surface of the bidding service:
// public browse endpoints, authenticated bid submission for buyers and
// listing management for farmers.  All handlers assume JWT middleware
// has already populated the request context where a route requires it.
package handler

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-live-bidding/internal/auction"
)

// errNoIdentity is returned when an authenticated route is reached
// without the middleware having stored an identity.
var errNoIdentity = errors.New("no identity in context")

// identityFrom extracts the authenticated identity placed in the
// context by the JWT middleware.
func identityFrom(c echo.Context) (auction.Identity, error) {
	if id, ok := c.Get("identity").(auction.Identity); ok && id.ID != 0 {
		return id, nil
	}
	return auction.Identity{}, errNoIdentity
}
