package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/farm-live-bidding/internal/model"
)

// BidRepo provides data access to the bids table.  Bid rows are
// append-only; the only column ever updated is is_winning, and that
// update always happens inside the same transaction that inserts the
// replacement bid.
type BidRepo struct {
	db *sql.DB
}

// NewBidRepo returns a new BidRepo bound to the provided database.
func NewBidRepo(db *sql.DB) *BidRepo { return &BidRepo{db: db} }

const bidColumns = `id, listing_id, bidder_id, amount, is_winning, created_at`

// scanBid scans one bids row.
func scanBid(scan func(dest ...interface{}) error) (*model.Bid, error) {
	var b model.Bid
	var amount string
	if err := scan(&b.ID, &b.ListingID, &b.BidderID, &amount, &b.IsWinning, &b.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &b, nil
}

// InsertTx inserts a bid within the provided transaction and populates
// the generated ID and created_at on the given model.
func (r *BidRepo) InsertTx(ctx context.Context, tx *sql.Tx, b *model.Bid) error {
	const q = `INSERT INTO bids (listing_id, bidder_id, amount, is_winning, created_at) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		b.ListingID, b.BidderID, b.Amount.StringFixed(2), b.IsWinning,
		b.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	const sel = `SELECT ` + bidColumns + ` FROM bids WHERE id = ?`
	stored, err := scanBid(tx.QueryRowContext(ctx, sel, b.ID).Scan)
	if err != nil {
		return err
	}
	*b = *stored
	return nil
}

// ClearWinningTx clears the is_winning flag on whichever bid currently
// holds it for the listing.  Running it in the same transaction as
// InsertTx guarantees at most one winning bid per listing is ever
// visible.
func (r *BidRepo) ClearWinningTx(ctx context.Context, tx *sql.Tx, listingID uint64) error {
	const q = `UPDATE bids SET is_winning = 0 WHERE listing_id = ? AND is_winning = 1`
	_, err := tx.ExecContext(ctx, q, listingID)
	return err
}

// GetByID returns a single bid or sql.ErrNoRows.
func (r *BidRepo) GetByID(ctx context.Context, id uint64) (*model.Bid, error) {
	const q = `SELECT ` + bidColumns + ` FROM bids WHERE id = ?`
	return scanBid(r.db.QueryRowContext(ctx, q, id).Scan)
}

// HighestByListingTx returns the bid currently flagged winning for the
// listing, or nil when the listing has no bids yet.
func (r *BidRepo) HighestByListingTx(ctx context.Context, tx *sql.Tx, listingID uint64) (*model.Bid, error) {
	const q = `SELECT ` + bidColumns + ` FROM bids WHERE listing_id = ? AND is_winning = 1`
	b, err := scanBid(tx.QueryRowContext(ctx, q, listingID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// BidWithBidder pairs a bid with the display name of its bidder for
// room snapshots and history responses.
type BidWithBidder struct {
	ID         uint64          `json:"id"`
	ListingID  uint64          `json:"listing_id"`
	BidderID   uint64          `json:"bidder_id"`
	BidderName string          `json:"bidder_name"`
	Amount     decimal.Decimal `json:"amount"`
	IsWinning  bool            `json:"is_winning"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ListByListing returns one page of a listing's bid history, most
// recent first, joined with bidder names.  Page numbers start at 1.
func (r *BidRepo) ListByListing(ctx context.Context, listingID uint64, page, pageSize int) ([]BidWithBidder, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	const q = `SELECT b.id, b.listing_id, b.bidder_id, u.name, b.amount, b.is_winning, b.created_at
               FROM bids b
               JOIN users u ON u.id = b.bidder_id
               WHERE b.listing_id = ?
               ORDER BY b.created_at DESC, b.id DESC
               LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, listingID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bids := make([]BidWithBidder, 0, pageSize)
	for rows.Next() {
		var b BidWithBidder
		var amount string
		if err := rows.Scan(&b.ID, &b.ListingID, &b.BidderID, &b.BidderName, &amount, &b.IsWinning, &b.CreatedAt); err != nil {
			return nil, err
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// CountByListing returns the total number of bids on a listing, used
// for pagination metadata.
func (r *BidRepo) CountByListing(ctx context.Context, listingID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM bids WHERE listing_id = ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, listingID).Scan(&n)
	return n, err
}
