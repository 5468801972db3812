// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/farm-live-bidding/internal/config"
	"github.com/iliyamo/farm-live-bidding/internal/handler"
	"github.com/iliyamo/farm-live-bidding/internal/middleware"
	"github.com/iliyamo/farm-live-bidding/internal/model"
	"github.com/iliyamo/farm-live-bidding/internal/ws"
)

// Deps bundles everything route registration needs.  Redis is
// optional; when nil the rate limiter and response cache silently
// disable themselves.
type Deps struct {
	Public    *handler.PublicHandler
	Bids      *handler.BidHandler
	Farmer    *handler.FarmerHandler
	Hub       *ws.Hub
	JWTSecret string
	Redis     *redis.Client
}

// Register mounts all routes on the Echo instance.
//
//	GET  /healthz                         liveness probe
//	GET  /v1/bidding/active               public browse (cached)
//	GET  /v1/bidding/room/:id             public room snapshot (cached)
//	GET  /v1/bidding/history/:listingId   public bid history (cached)
//	POST /v1/bidding/bid/:listingId       BUYER only (rate limited)
//	POST /v1/bidding/listings             FARMER only
//	GET  /ws/bidding                      WebSocket upgrade
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), d.Redis)

	pub := e.Group("/v1/bidding")
	pub.GET("/active", d.Public.ActiveRooms, cache)
	pub.GET("/room/:id", d.Public.RoomDetail, cache)
	pub.GET("/history/:listingId", d.Public.BidHistory, cache)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), d.Redis)

	buyer := e.Group("/v1/bidding")
	buyer.Use(middleware.JWTAuth(d.JWTSecret))
	buyer.Use(middleware.RequireRole(model.RoleBuyer))
	buyer.POST("/bid/:listingId", d.Bids.PlaceBid, limiter)

	farmer := e.Group("/v1/bidding")
	farmer.Use(middleware.JWTAuth(d.JWTSecret))
	farmer.Use(middleware.RequireRole(model.RoleFarmer))
	farmer.POST("/listings", d.Farmer.CreateListing)

	// WebSocket clients authenticate in-band after the upgrade, so no
	// JWT middleware here.
	e.GET("/ws/bidding", ws.Handler(d.Hub))
}
