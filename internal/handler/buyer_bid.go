package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/farm-live-bidding/internal/auction"
	"github.com/iliyamo/farm-live-bidding/internal/repository"
)

// BidHandler serves bid submission over HTTP for users with the BUYER
// role.  Bids placed here go through the same coordinator as WebSocket
// bids, so both paths apply identical validation and room locking.
type BidHandler struct {
	RoomRepo    *repository.RoomRepo // resolves listing ids to rooms
	Coordinator *auction.Coordinator // serializes and commits bids
}

// NewBidHandler constructs a BidHandler.
func NewBidHandler(roomRepo *repository.RoomRepo, coord *auction.Coordinator) *BidHandler {
	if roomRepo == nil || coord == nil {
		panic("nil dependency passed to NewBidHandler")
	}
	return &BidHandler{RoomRepo: roomRepo, Coordinator: coord}
}

// PlaceBid handles POST /v1/bidding/bid/:listingId.  The body carries
// the offered amount; on acceptance the new bid is returned with 201
// and every room member receives the bid-placed broadcast.
func (h *BidHandler) PlaceBid(c echo.Context) error {
	bidder, err := identityFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	listingID, err := strconv.ParseUint(c.Param("listingId"), 10, 64)
	if err != nil || listingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid listing id"})
	}
	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if !body.Amount.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount must be positive"})
	}

	ctx := c.Request().Context()
	room, err := h.RoomRepo.GetByListingID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no auction room for listing"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	bid, err := h.Coordinator.SubmitBid(ctx, room.ID, bidder, body.Amount)
	if err != nil {
		return bidError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"bid": echo.Map{
			"id":         bid.ID,
			"listing_id": bid.ListingID,
			"bidder_id":  bid.BidderID,
			"amount":     bid.Amount,
			"is_winning": bid.IsWinning,
			"created_at": bid.CreatedAt,
		},
	})
}

// bidError maps coordinator rejections onto HTTP statuses.  Rejections
// keep their message; infrastructure failures collapse to a generic 500.
func bidError(c echo.Context, err error) error {
	var tooLow *auction.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":              "bid too low",
			"minimum_acceptable": tooLow.Minimum,
		})
	case errors.Is(err, auction.ErrRoomInactive):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "auction room is not active"})
	case errors.Is(err, auction.ErrForbiddenRole):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only buyers may place bids"})
	case errors.Is(err, auction.ErrRoomNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "auction room not found"})
	case errors.Is(err, auction.ErrAuctionEnded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "auction has ended"})
	case errors.Is(err, auction.ErrRoomBusy):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "room is busy, retry shortly"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to place bid"})
	}
}
