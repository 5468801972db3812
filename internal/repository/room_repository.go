package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/farm-live-bidding/internal/model"
)

// RoomRepo provides data access to the auction_rooms and
// room_participants tables.  Rooms are soft-ended only: closure flips
// is_active and records the winning bid, the row itself stays for
// history and possible reactivation.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the provided database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// DB exposes the underlying sql.DB for cross-repository transactions.
func (r *RoomRepo) DB() *sql.DB { return r.db }

const roomColumns = `id, listing_id, is_active, started_at, ends_at, current_bid_id, winning_bid_id, created_at, updated_at`

// scanRoom scans one auction_rooms row.
func scanRoom(scan func(dest ...interface{}) error) (*model.AuctionRoom, error) {
	var room model.AuctionRoom
	var currentBid, winningBid sql.NullInt64
	if err := scan(
		&room.ID, &room.ListingID, &room.IsActive, &room.StartedAt, &room.EndsAt,
		&currentBid, &winningBid, &room.CreatedAt, &room.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if currentBid.Valid {
		id := uint64(currentBid.Int64)
		room.CurrentBidID = &id
	}
	if winningBid.Valid {
		id := uint64(winningBid.Int64)
		room.WinningBidID = &id
	}
	return &room, nil
}

// GetByID returns a single room or ErrRoomNotFound.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.AuctionRoom, error) {
	const q = `SELECT ` + roomColumns + ` FROM auction_rooms WHERE id = ?`
	room, err := scanRoom(r.db.QueryRowContext(ctx, q, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// GetByIDTx is GetByID inside the caller's transaction.  The row is
// locked FOR UPDATE so that bid commits and closure read committed
// state under the room's critical section.
func (r *RoomRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.AuctionRoom, error) {
	const q = `SELECT ` + roomColumns + ` FROM auction_rooms WHERE id = ? FOR UPDATE`
	room, err := scanRoom(tx.QueryRowContext(ctx, q, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// GetByListingID returns the room belonging to a listing, or
// ErrRoomNotFound.
func (r *RoomRepo) GetByListingID(ctx context.Context, listingID uint64) (*model.AuctionRoom, error) {
	const q = `SELECT ` + roomColumns + ` FROM auction_rooms WHERE listing_id = ?`
	room, err := scanRoom(r.db.QueryRowContext(ctx, q, listingID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// GetByListingIDTx returns the room belonging to a listing, or
// ErrRoomNotFound.  At most one room exists per listing (unique key).
func (r *RoomRepo) GetByListingIDTx(ctx context.Context, tx *sql.Tx, listingID uint64) (*model.AuctionRoom, error) {
	const q = `SELECT ` + roomColumns + ` FROM auction_rooms WHERE listing_id = ? FOR UPDATE`
	room, err := scanRoom(tx.QueryRowContext(ctx, q, listingID).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// CreateTx inserts a room for a listing within the provided
// transaction.  EndsAt must be strictly after StartedAt; the schema
// mirrors the listing deadline into ends_at.
func (r *RoomRepo) CreateTx(ctx context.Context, tx *sql.Tx, room *model.AuctionRoom) error {
	const q = `INSERT INTO auction_rooms (listing_id, is_active, started_at, ends_at) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		room.ListingID, room.IsActive,
		room.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		room.EndsAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	room.ID = uint64(id)
	const sel = `SELECT ` + roomColumns + ` FROM auction_rooms WHERE id = ?`
	stored, err := scanRoom(tx.QueryRowContext(ctx, sel, room.ID).Scan)
	if err != nil {
		return err
	}
	*room = *stored
	return nil
}

// ReactivateTx reopens a closed room for a re-submitted listing: the
// active flag is restored, the clock restarts and the previous round's
// current/winning pointers are cleared so the minimum bid falls back
// to the listing's starting price.  Old bid rows stay in history.
func (r *RoomRepo) ReactivateTx(ctx context.Context, tx *sql.Tx, roomID uint64, startedAt, endsAt time.Time) error {
	const q = `UPDATE auction_rooms
               SET is_active = 1, started_at = ?, ends_at = ?, current_bid_id = NULL, winning_bid_id = NULL,
                   updated_at = UTC_TIMESTAMP()
               WHERE id = ?`
	_, err := tx.ExecContext(ctx, q,
		startedAt.UTC().Format("2006-01-02 15:04:05"),
		endsAt.UTC().Format("2006-01-02 15:04:05"),
		roomID,
	)
	return err
}

// SetCurrentBidTx points the room at its new highest bid.  Part of the
// atomic bid commit.
func (r *RoomRepo) SetCurrentBidTx(ctx context.Context, tx *sql.Tx, roomID, bidID uint64) error {
	const q = `UPDATE auction_rooms SET current_bid_id = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := tx.ExecContext(ctx, q, bidID, roomID)
	return err
}

// CloseTx deactivates the room and records the winning bid (NULL when
// the auction ended without bids).  Part of the atomic closure.
func (r *RoomRepo) CloseTx(ctx context.Context, tx *sql.Tx, roomID uint64, winningBidID *uint64) error {
	const q = `UPDATE auction_rooms
               SET is_active = 0, winning_bid_id = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND is_active = 1`
	var winning interface{}
	if winningBidID != nil {
		winning = *winningBidID
	}
	_, err := tx.ExecContext(ctx, q, winning, roomID)
	return err
}

// ExpiredRoomIDs lists rooms that are still active past their
// deadline.  The sweeper closes each through the coordinator.
func (r *RoomRepo) ExpiredRoomIDs(ctx context.Context, now time.Time) ([]uint64, error) {
	const q = `SELECT id FROM auction_rooms WHERE is_active = 1 AND ends_at <= ?`
	rows, err := r.db.QueryContext(ctx, q, now.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddParticipantTx records room membership.  INSERT IGNORE against the
// unique (room_id, user_id) key makes repeated joins no-ops.
func (r *RoomRepo) AddParticipantTx(ctx context.Context, tx *sql.Tx, roomID, userID uint64) error {
	const q = `INSERT IGNORE INTO room_participants (room_id, user_id) VALUES (?, ?)`
	_, err := tx.ExecContext(ctx, q, roomID, userID)
	return err
}

// AddParticipant is AddParticipantTx outside a transaction, for join
// bookkeeping that does not ride along a bid commit.
func (r *RoomRepo) AddParticipant(ctx context.Context, roomID, userID uint64) error {
	const q = `INSERT IGNORE INTO room_participants (room_id, user_id) VALUES (?, ?)`
	_, err := r.db.ExecContext(ctx, q, roomID, userID)
	return err
}

// RemoveParticipant drops a user from the room's membership set.
func (r *RoomRepo) RemoveParticipant(ctx context.Context, roomID, userID uint64) error {
	const q = `DELETE FROM room_participants WHERE room_id = ? AND user_id = ?`
	_, err := r.db.ExecContext(ctx, q, roomID, userID)
	return err
}

// Participant is one room member with their display name.
type Participant struct {
	UserID   uint64    `json:"user_id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

// ParticipantsByRoom lists the members of a room with display names.
func (r *RoomRepo) ParticipantsByRoom(ctx context.Context, roomID uint64) ([]Participant, error) {
	const q = `SELECT p.user_id, u.name, p.joined_at
               FROM room_participants p
               JOIN users u ON u.id = p.user_id
               WHERE p.room_id = ?
               ORDER BY p.joined_at`
	rows, err := r.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var parts []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.UserID, &p.Name, &p.JoinedAt); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}
