package repository

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RoomSearchQuery defines filters and sorting for browsing active
// auction rooms.  Price bounds apply to the effective current price
// (highest bid when one exists, starting price otherwise).  EndingIn
// restricts results to rooms closing within the given window.
type RoomSearchQuery struct {
	Category string
	Location string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	EndingIn time.Duration
	Sort     string // "ending-soon" (default) or "latest"
}

// ActiveRoomRow is one row of the active-rooms browse response.
type ActiveRoomRow struct {
	RoomID           uint64           `json:"room_id"`
	ListingID        uint64           `json:"listing_id"`
	Title            string           `json:"title"`
	Category         string           `json:"category"`
	Location         string           `json:"location"`
	Quantity         string           `json:"quantity"`
	Unit             string           `json:"unit"`
	StartingPrice    decimal.Decimal  `json:"starting_price"`
	CurrentBid       *decimal.Decimal `json:"current_bid,omitempty"`
	ParticipantCount int              `json:"participant_count"`
	EndsAt           time.Time        `json:"ends_at"`
}

// SearchActive lists active rooms matching the query, with current
// highest bid and participant count.  Sorting is by deadline ascending
// ("ending-soon", the default) or by room start descending ("latest").
func (r *RoomRepo) SearchActive(ctx context.Context, q RoomSearchQuery) ([]ActiveRoomRow, error) {
	where := []string{"ar.is_active = 1", "l.status = 'ACTIVE'", "ar.ends_at > UTC_TIMESTAMP()"}
	args := []interface{}{}

	if q.Category != "" {
		where = append(where, "LOWER(l.category) = ?")
		args = append(args, strings.ToLower(q.Category))
	}
	if q.Location != "" {
		where = append(where, "LOWER(l.location) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Location)+"%")
	}
	if q.MinPrice != nil {
		where = append(where, "COALESCE(hb.amount, l.starting_price) >= ?")
		args = append(args, q.MinPrice.StringFixed(2))
	}
	if q.MaxPrice != nil {
		where = append(where, "COALESCE(hb.amount, l.starting_price) <= ?")
		args = append(args, q.MaxPrice.StringFixed(2))
	}
	if q.EndingIn > 0 {
		where = append(where, "ar.ends_at <= ?")
		args = append(args, time.Now().UTC().Add(q.EndingIn).Format("2006-01-02 15:04:05"))
	}

	order := "ar.ends_at ASC"
	if q.Sort == "latest" {
		order = "ar.started_at DESC"
	}

	query := `SELECT
            ar.id, l.id, l.title, l.category, l.location, l.quantity, l.unit,
            l.starting_price, hb.amount,
            (SELECT COUNT(*) FROM room_participants rp WHERE rp.room_id = ar.id) AS participant_count,
            ar.ends_at
        FROM auction_rooms ar
        JOIN listings l ON l.id = ar.listing_id
        LEFT JOIN bids hb ON hb.id = ar.current_bid_id
        WHERE ` + strings.Join(where, " AND ") + `
        ORDER BY ` + order

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ActiveRoomRow{}
	for rows.Next() {
		var row ActiveRoomRow
		var quantity, startingPrice string
		var current *string
		if err := rows.Scan(
			&row.RoomID, &row.ListingID, &row.Title, &row.Category, &row.Location,
			&quantity, &row.Unit, &startingPrice, &current,
			&row.ParticipantCount, &row.EndsAt,
		); err != nil {
			return nil, err
		}
		row.Quantity = quantity
		if row.StartingPrice, err = decimal.NewFromString(startingPrice); err != nil {
			return nil, err
		}
		if current != nil {
			d, err := decimal.NewFromString(*current)
			if err != nil {
				return nil, err
			}
			row.CurrentBid = &d
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
