package model

import "time"

// Reservation lifecycle states.  A reservation is created CONFIRMED and
// moves to CANCELLED through the booking engine's cancel operation.
// After the class has taken place an instructor or administrator may
// mark it ATTENDED or NO_SHOW.  Rows are never deleted so the booking
// history stays auditable.
const (
	ReservationConfirmed = "CONFIRMED"
	ReservationCancelled = "CANCELLED"
	ReservationAttended  = "ATTENDED"
	ReservationNoShow    = "NO_SHOW"
)

// Reservation records a member's booking of one spot in a class slot.
// Each reservation spends exactly one unit of the package grant it
// references; cancelling inside policy returns that unit to the same
// grant.  This struct corresponds to a row in the `reservations` table.
//
// Fields:
//  ID          – primary key identifier.
//  MemberID    – member who holds the spot.
//  SlotID      – class slot being reserved.
//  GrantID     – package grant that funded this reservation.
//  Status      – state (CONFIRMED, CANCELLED, ATTENDED, NO_SHOW).
//  CancelledAt – when the reservation was cancelled (null while active).
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Reservation struct {
	ID          uint64     // reservations.id
	MemberID    uint64     // reservations.member_id
	SlotID      uint64     // reservations.slot_id
	GrantID     uint64     // reservations.grant_id
	Status      string     // reservations.status
	CancelledAt *time.Time // reservations.cancelled_at (nullable)
	CreatedAt   time.Time  // reservations.created_at
	UpdatedAt   time.Time  // reservations.updated_at
}
