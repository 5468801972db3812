package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/farm-live-bidding/internal/model"
	"github.com/iliyamo/farm-live-bidding/internal/repository"
)

// FarmerHandler serves listing management for users with the FARMER
// role.  Creating a listing also opens its auction room; re-submitting
// an ended listing reopens the existing room under a new deadline.
type FarmerHandler struct {
	ListingRepo     *repository.ListingRepo // listing persistence
	RoomRepo        *repository.RoomRepo    // auction room persistence
	MaxAuctionHours int                     // upper bound on auction duration
}

// NewFarmerHandler constructs a FarmerHandler.  maxAuctionHours caps
// the requested auction duration; values below one hour fall back to
// the one week default.
func NewFarmerHandler(listingRepo *repository.ListingRepo, roomRepo *repository.RoomRepo, maxAuctionHours int) *FarmerHandler {
	if listingRepo == nil || roomRepo == nil {
		panic("nil repository passed to NewFarmerHandler")
	}
	if maxAuctionHours < 1 {
		maxAuctionHours = 168
	}
	return &FarmerHandler{ListingRepo: listingRepo, RoomRepo: roomRepo, MaxAuctionHours: maxAuctionHours}
}

// createListingRequest is the body of POST /v1/bidding/listings.  When
// ListingID is set the request reactivates an ended listing instead of
// creating a new one; only DurationHours is honoured in that case.
type createListingRequest struct {
	ListingID     uint64          `json:"listing_id,omitempty"`
	Title         string          `json:"title"`
	Category      string          `json:"category"`
	Location      string          `json:"location"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
	DurationHours int             `json:"duration_hours"`
}

// CreateListing handles POST /v1/bidding/listings.  It creates a
// listing together with its auction room in one transaction, or
// reactivates an ended listing the caller owns.  Responds 201 with the
// listing and room on success.
func (h *FarmerHandler) CreateListing(c echo.Context) error {
	farmer, err := identityFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createListingRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.DurationHours < 1 || body.DurationHours > h.MaxAuctionHours {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_hours must be between 1 and " + strconv.Itoa(h.MaxAuctionHours)})
	}
	now := time.Now().UTC()
	deadline := now.Add(time.Duration(body.DurationHours) * time.Hour)

	if body.ListingID != 0 {
		return h.reactivate(c, farmer.ID, body.ListingID, now, deadline)
	}

	if body.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	if !body.StartingPrice.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starting_price must be positive"})
	}
	if !body.Quantity.IsPositive() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity must be positive"})
	}

	ctx := c.Request().Context()
	tx, err := h.ListingRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	listing := &model.Listing{
		FarmerID:      farmer.ID,
		Title:         body.Title,
		Category:      body.Category,
		Location:      body.Location,
		StartingPrice: body.StartingPrice,
		Quantity:      body.Quantity,
		Unit:          body.Unit,
		Deadline:      deadline,
		Status:        model.ListingStatusActive,
	}
	if err := h.ListingRepo.CreateTx(ctx, tx, listing); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create listing"})
	}
	room := &model.AuctionRoom{
		ListingID: listing.ID,
		IsActive:  true,
		StartedAt: now,
		EndsAt:    deadline,
	}
	if err := h.RoomRepo.CreateTx(ctx, tx, room); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to open auction room"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed = true

	return c.JSON(http.StatusCreated, echo.Map{
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
		"room": echo.Map{
			"id":         room.ID,
			"listing_id": room.ListingID,
			"is_active":  room.IsActive,
			"started_at": room.StartedAt,
			"ends_at":    room.EndsAt,
		},
	})
}

// reactivate reopens an ended listing owned by the caller.  The
// listing returns to ACTIVE and its room accepts bids again with the
// winning pointers cleared, so the minimum falls back to the starting
// price.  Earlier bids stay in the history.
func (h *FarmerHandler) reactivate(c echo.Context, farmerID, listingID uint64, now, deadline time.Time) error {
	ctx := c.Request().Context()
	tx, err := h.ListingRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	listing, err := h.ListingRepo.GetByIDTx(ctx, tx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrListingNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "listing not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if listing.FarmerID != farmerID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "listing belongs to another farmer"})
	}
	if err := h.ListingRepo.ReactivateTx(ctx, tx, listingID, deadline); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "listing is not ended"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	room, err := h.RoomRepo.GetByListingIDTx(ctx, tx, listingID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.RoomRepo.ReactivateTx(ctx, tx, room.ID, now, deadline); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed = true

	return c.JSON(http.StatusCreated, echo.Map{
		"listing_id": listingID,
		"room_id":    room.ID,
		"is_active":  true,
		"started_at": now,
		"ends_at":    deadline,
	})
}
