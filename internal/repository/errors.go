// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrListingNotFound indicates that the requested listing
// does not exist, while ErrConflict signals that an operation cannot
// proceed due to conflicting state (e.g. re-submitting a cancelled
// listing).
package repository

import "errors"

// ErrListingNotFound indicates that a listing was not located in the DB.
// Handlers should translate this into an HTTP 404 response.
var ErrListingNotFound = errors.New("listing not found")

// ErrRoomNotFound indicates that an auction room was not located in the
// DB. Handlers should translate this into an HTTP 404 response.
var ErrRoomNotFound = errors.New("auction room not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because
// of conflicting state, such as reactivating a cancelled listing.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
