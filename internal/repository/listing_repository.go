package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/farm-live-bidding/internal/model"
)

// ListingRepo provides data access to the listings table.  All
// timestamps are stored and compared in UTC; decimal columns are
// scanned through their string representation to avoid float
// rounding.
type ListingRepo struct {
	db *sql.DB
}

// NewListingRepo returns a new ListingRepo bound to the provided database.
func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *ListingRepo) DB() *sql.DB { return r.db }

// scanListing scans one listings row from the given row scanner.
func scanListing(scan func(dest ...interface{}) error) (*model.Listing, error) {
	var l model.Listing
	var startingPrice, quantity string
	if err := scan(
		&l.ID, &l.FarmerID, &l.Title, &l.Category, &l.Location,
		&startingPrice, &quantity, &l.Unit, &l.Deadline, &l.Status,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if l.StartingPrice, err = decimal.NewFromString(startingPrice); err != nil {
		return nil, err
	}
	if l.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return nil, err
	}
	return &l, nil
}

const listingColumns = `id, farmer_id, title, category, location, starting_price, quantity, unit, deadline, status, created_at, updated_at`

// GetByID returns a single listing or ErrListingNotFound.
func (r *ListingRepo) GetByID(ctx context.Context, id uint64) (*model.Listing, error) {
	const q = `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`
	l, err := scanListing(r.db.QueryRowContext(ctx, q, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	return l, err
}

// GetByIDTx is GetByID inside the caller's transaction.  It locks the
// row with FOR UPDATE so that reactivation decisions are made against
// committed state.
func (r *ListingRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Listing, error) {
	const q = `SELECT ` + listingColumns + ` FROM listings WHERE id = ? FOR UPDATE`
	l, err := scanListing(tx.QueryRowContext(ctx, q, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	return l, err
}

// CreateTx inserts a new listing within the provided transaction and
// populates the generated ID and DB-default fields on the given model.
// The caller must commit or roll back the transaction.
func (r *ListingRepo) CreateTx(ctx context.Context, tx *sql.Tx, l *model.Listing) error {
	const q = `INSERT INTO listings (farmer_id, title, category, location, starting_price, quantity, unit, deadline, status)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		l.FarmerID, l.Title, l.Category, l.Location,
		l.StartingPrice.StringFixed(2), l.Quantity.String(), l.Unit,
		l.Deadline.UTC().Format("2006-01-02 15:04:05"), l.Status,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	// Query back the row to populate timestamps set by the database.
	const sel = `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`
	stored, err := scanListing(tx.QueryRowContext(ctx, sel, l.ID).Scan)
	if err != nil {
		return err
	}
	*l = *stored
	return nil
}

// ReactivateTx flips an ENDED listing back to ACTIVE with a new
// deadline.  Cancelled listings are never reactivated; attempting to
// do so returns ErrConflict.  The caller must commit or roll back the
// transaction.
func (r *ListingRepo) ReactivateTx(ctx context.Context, tx *sql.Tx, id uint64, deadline time.Time) error {
	const q = `UPDATE listings SET status = ?, deadline = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q,
		model.ListingStatusActive, deadline.UTC().Format("2006-01-02 15:04:05"),
		id, model.ListingStatusEnded,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// MarkEndedTx sets listings.status to ENDED inside the caller's
// transaction.  It is part of the atomic room closure performed by the
// ledger.
func (r *ListingRepo) MarkEndedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `UPDATE listings SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, model.ListingStatusEnded, id)
	return err
}
