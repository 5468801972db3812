package model

import "time"

// Role names as they appear in the JWT "role" claim and the users
// table.  FARMER accounts create listings; BUYER accounts are the
// trading participants allowed to bid.
const (
	RoleFarmer = "FARMER"
	RoleBuyer  = "BUYER"
)

// User is a read-only view of the `users` table, which is owned by
// the account service.  The bidding service never writes users; it
// only joins them to display bidder names and to resolve identities
// carried in JWT claims.
//
// Fields:
//
//	ID        – primary key identifier of the user.
//	Name      – display name shown next to bids.
//	Email     – unique email address.
//	Role      – role name (FARMER or BUYER).
//	CreatedAt – timestamp of creation.
type User struct {
	ID        uint64    // users.id
	Name      string    // users.name
	Email     string    // users.email
	Role      string    // users.role
	CreatedAt time.Time // users.created_at
}
