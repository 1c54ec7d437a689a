// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// booking service and handlers to distinguish between different failure
// scenarios. Policy violations (a full slot, a missing balance) are
// expected outcomes surfaced to members; they are never retried.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as cancelling a slot that has
// already completed. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// ErrSlotNotFound indicates that a class slot was not located in the DB.
var ErrSlotNotFound = errors.New("slot not found")

// ErrReservationNotFound indicates that a reservation does not exist.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrGrantNotFound indicates that a package grant does not exist.
var ErrGrantNotFound = errors.New("grant not found")

// ErrSlotFull is returned when a reservation would exceed the slot's
// maximum capacity. The member can pick another slot or join the
// waitlist.
var ErrSlotFull = errors.New("slot full")

// ErrAlreadyReserved is returned when the member already holds a
// CONFIRMED reservation for the slot. At most one confirmed
// reservation may exist per (member, slot) pair.
var ErrAlreadyReserved = errors.New("already reserved")

// ErrSlotNotBookable is returned when the slot is not SCHEDULED, has
// already started, or starts beyond the advance booking window.
var ErrSlotNotBookable = errors.New("slot not bookable")

// ErrNoActiveBalance is returned by the package ledger when no ACTIVE,
// unexpired grant with remaining balance exists for the member.
var ErrNoActiveBalance = errors.New("no active balance")

// ErrAlreadyCancelled is returned when cancelling a reservation that is
// not in the CONFIRMED state. The cancel operation is not repeatable.
var ErrAlreadyCancelled = errors.New("already cancelled")

// ErrReservationLimit is returned when the member already holds the
// maximum number of upcoming confirmed reservations.
var ErrReservationLimit = errors.New("reservation limit reached")

// ErrAlreadyWaitlisted is returned when the member is already queued
// for the slot.
var ErrAlreadyWaitlisted = errors.New("already waitlisted")
