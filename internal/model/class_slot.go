package model

import "time"

// Slot lifecycle states.  A slot is created SCHEDULED, is moved to
// CANCELLED by an administrator, and to COMPLETED once the class has
// taken place.  The booking engine never changes slot state itself.
const (
	SlotScheduled = "SCHEDULED"
	SlotCancelled = "CANCELLED"
	SlotCompleted = "COMPLETED"
)

// ClassSlot represents one scheduled, time-boxed occurrence of a class
// with a finite capacity.  Members reserve spots against slots; the
// number of CONFIRMED reservations for a slot never exceeds
// MaxCapacity.  This struct corresponds to a row in the `class_slots`
// table.
//
// Fields:
//  ID           – primary key identifier.
//  ClassTypeID  – class type being taught in this slot.
//  InstructorID – user ID of the instructor leading the class.
//  StartsAt     – when the class begins (UTC).
//  EndsAt       – when the class ends (UTC, after StartsAt).
//  MaxCapacity  – maximum number of confirmed reservations.
//  Status       – lifecycle state (SCHEDULED, CANCELLED, COMPLETED).
//  Notes        – optional administrative notes.
//  CreatedAt    – creation timestamp.
//  UpdatedAt    – last update timestamp.
type ClassSlot struct {
	ID           uint64    // class_slots.id
	ClassTypeID  uint64    // class_slots.class_type_id
	InstructorID uint64    // class_slots.instructor_id
	StartsAt     time.Time // class_slots.starts_at
	EndsAt       time.Time // class_slots.ends_at
	MaxCapacity  uint32    // class_slots.max_capacity
	Status       string    // class_slots.status
	Notes        *string   // class_slots.notes (nullable)
	CreatedAt    time.Time // class_slots.created_at
	UpdatedAt    time.Time // class_slots.updated_at
}

// Bookable reports whether the slot can accept new reservations at the
// given instant: it must still be SCHEDULED and must not have started.
// Capacity is checked separately under the slot lock.
func (s *ClassSlot) Bookable(asOf time.Time) bool {
	return s.Status == SlotScheduled && s.StartsAt.After(asOf)
}
