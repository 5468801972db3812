// This file defines the public browse API: active room search, full
// room snapshots and paginated bid history.  These routes require no
// authentication and are safe to cache for short periods.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/farm-live-bidding/internal/repository"
)

// PublicHandler aggregates repositories needed for unauthenticated
// browsing of auctions.
type PublicHandler struct {
	ListingRepo *repository.ListingRepo // listing data
	RoomRepo    *repository.RoomRepo    // room data and search
	BidRepo     *repository.BidRepo     // bid history
}

// NewPublicHandler constructs a PublicHandler.
func NewPublicHandler(listingRepo *repository.ListingRepo, roomRepo *repository.RoomRepo, bidRepo *repository.BidRepo) *PublicHandler {
	if listingRepo == nil || roomRepo == nil || bidRepo == nil {
		panic("nil repository passed to NewPublicHandler")
	}
	return &PublicHandler{ListingRepo: listingRepo, RoomRepo: roomRepo, BidRepo: bidRepo}
}

// ActiveRooms handles GET /v1/bidding/active.  Supported query
// parameters: category, location, min_price, max_price, ending_in
// (Go duration, e.g. "2h") and sort ("ending-soon" or "latest").
func (h *PublicHandler) ActiveRooms(c echo.Context) error {
	q := repository.RoomSearchQuery{
		Category: c.QueryParam("category"),
		Location: c.QueryParam("location"),
		Sort:     c.QueryParam("sort"),
	}
	if raw := c.QueryParam("min_price"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid min_price"})
		}
		q.MinPrice = &d
	}
	if raw := c.QueryParam("max_price"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid max_price"})
		}
		q.MaxPrice = &d
	}
	if raw := c.QueryParam("ending_in"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ending_in"})
		}
		q.EndingIn = d
	}

	rooms, err := h.RoomRepo.SearchActive(c.Request().Context(), q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": rooms, "count": len(rooms)})
}

// RoomDetail handles GET /v1/bidding/room/:id.  The response carries
// the room, its listing, the current highest bid, recent bids with
// bidder names and the participant list.
func (h *PublicHandler) RoomDetail(c echo.Context) error {
	roomID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || roomID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
	}
	ctx := c.Request().Context()

	room, err := h.RoomRepo.GetByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "room not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	listing, err := h.ListingRepo.GetByID(ctx, room.ListingID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	var currentBid echo.Map
	if room.CurrentBidID != nil {
		if bid, err := h.BidRepo.GetByID(ctx, *room.CurrentBidID); err == nil {
			currentBid = echo.Map{
				"id":         bid.ID,
				"bidder_id":  bid.BidderID,
				"amount":     bid.Amount,
				"created_at": bid.CreatedAt,
			}
		}
	}
	recent, err := h.BidRepo.ListByListing(ctx, listing.ID, 1, 20)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	participants, err := h.RoomRepo.ParticipantsByRoom(ctx, roomID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"room": echo.Map{
			"id":         room.ID,
			"listing_id": room.ListingID,
			"is_active":  room.IsActive,
			"started_at": room.StartedAt,
			"ends_at":    room.EndsAt,
		},
		"listing": echo.Map{
			"id":             listing.ID,
			"farmer_id":      listing.FarmerID,
			"title":          listing.Title,
			"category":       listing.Category,
			"location":       listing.Location,
			"starting_price": listing.StartingPrice,
			"quantity":       listing.Quantity,
			"unit":           listing.Unit,
			"deadline":       listing.Deadline,
			"status":         listing.Status,
		},
		"current_bid":  currentBid,
		"recent_bids":  recent,
		"participants": participants,
	})
}

// BidHistory handles GET /v1/bidding/history/:listingId with page and
// page_size query parameters.  Bids are returned newest first.
func (h *PublicHandler) BidHistory(c echo.Context) error {
	listingID, err := strconv.ParseUint(c.Param("listingId"), 10, 64)
	if err != nil || listingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	ctx := c.Request().Context()

	if _, err := h.ListingRepo.GetByID(ctx, listingID); err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	bids, err := h.BidRepo.ListByListing(ctx, listingID, page, pageSize)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	total, err := h.BidRepo.CountByListing(ctx, listingID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"bids":      bids,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}
