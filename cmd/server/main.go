// Entry point of the live bidding service.  Wires configuration,
// MySQL, Redis, RabbitMQ, the auction coordinator, the WebSocket hub
// and the HTTP router, then serves until interrupted.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-live-bidding/internal/auction"
	"github.com/iliyamo/farm-live-bidding/internal/config"
	"github.com/iliyamo/farm-live-bidding/internal/database"
	"github.com/iliyamo/farm-live-bidding/internal/handler"
	"github.com/iliyamo/farm-live-bidding/internal/queue"
	"github.com/iliyamo/farm-live-bidding/internal/repository"
	"github.com/iliyamo/farm-live-bidding/internal/router"
	queue_publisher "github.com/iliyamo/farm-live-bidding/internal/service"
	"github.com/iliyamo/farm-live-bidding/internal/utils"
	"github.com/iliyamo/farm-live-bidding/internal/ws"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient() // nil when unconfigured; limiter and cache fail open

	listingRepo := repository.NewListingRepo(db)
	roomRepo := repository.NewRoomRepo(db)
	bidRepo := repository.NewBidRepo(db)
	ledger := repository.NewAuctionLedger(db, listingRepo, roomRepo, bidRepo)

	archiver := queue_publisher.NewArchiver(bidRepo)
	coord := auction.NewCoordinator(ledger, nil, archiver, auction.Options{
		MinIncrement: cfg.MinIncrement,
		LockWait:     cfg.RoomLockWait,
	})

	hub := ws.NewHub(coord, func(token string) (auction.Identity, error) {
		return utils.ParseIdentity(cfg.JWTSecret, token)
	})
	coord.SetBroadcaster(hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := auction.NewSweeper(coord, ledger, cfg.SweepInterval)
	go sweeper.Run(ctx)

	go func() {
		if err := queue.StartAuctionConsumer(); err != nil {
			log.Printf("auction-consumer: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Public:    handler.NewPublicHandler(listingRepo, roomRepo, bidRepo),
		Bids:      handler.NewBidHandler(roomRepo, coord),
		Farmer:    handler.NewFarmerHandler(listingRepo, roomRepo, cfg.MaxAuctionHours),
		Hub:       hub,
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
