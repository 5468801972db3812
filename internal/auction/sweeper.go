package auction

import (
	"context"
	"log"
	"time"
)

// Sweeper guarantees every auction eventually closes even with no bid
// activity.  On a fixed interval it asks the ledger for rooms past
// their deadline and closes each through the coordinator, so sweep
// closure and organic closure share one code path.  CloseAuction's
// idempotency makes overlapping ticks harmless.
type Sweeper struct {
	coord    *Coordinator
	ledger   Ledger
	interval time.Duration
}

// NewSweeper builds a Sweeper.  A non-positive interval falls back to
// five minutes.
func NewSweeper(coord *Coordinator, ledger Ledger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{coord: coord, ledger: ledger, interval: interval}
}

// Run ticks until the context is cancelled.  It performs one sweep
// immediately on start so expired rooms are not left open for a full
// interval after a restart.  Run is meant to be launched in its own
// goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("sweeper: stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep closes every expired room it can find.  One room's failure
// must not abort the rest of the sweep, and an unexpected panic must
// not take the sweeper down, so both are caught and logged per tick.
func (s *Sweeper) sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("sweeper: recovered from panic: %v", r)
		}
	}()

	ids, err := s.ledger.ExpiredRoomIDs(ctx, s.coord.opts.Now())
	if err != nil {
		log.Printf("sweeper: list expired rooms failed: %v", err)
		return
	}
	for _, id := range ids {
		if err := s.coord.CloseAuction(ctx, id); err != nil {
			log.Printf("sweeper: close room %d failed: %v", id, err)
		}
	}
}
