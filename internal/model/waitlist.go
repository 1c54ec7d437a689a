package model

import "time"

// Waitlist entry states.  An entry is created WAITING, becomes NOTIFIED
// when a spot frees up, and CANCELLED when the member leaves the list
// or books the slot.
const (
	WaitlistWaiting   = "WAITING"
	WaitlistNotified  = "NOTIFIED"
	WaitlistCancelled = "CANCELLED"
)

// WaitlistEntry represents a member queued for a full class slot.
// Entries are ordered by Position; when a cancellation frees a spot the
// head of the list is notified.  Joining the waitlist never debits a
// package grant.  This struct corresponds to a row in the `waitlist`
// table.
//
// Fields:
//  ID         – primary key identifier.
//  MemberID   – member waiting for a spot.
//  SlotID     – full slot being waited on.
//  Position   – 1-based position in the queue.
//  Status     – state (WAITING, NOTIFIED, CANCELLED).
//  NotifiedAt – when the member was told a spot opened (nullable).
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type WaitlistEntry struct {
	ID         uint64     // waitlist.id
	MemberID   uint64     // waitlist.member_id
	SlotID     uint64     // waitlist.slot_id
	Position   uint32     // waitlist.position
	Status     string     // waitlist.status
	NotifiedAt *time.Time // waitlist.notified_at (nullable)
	CreatedAt  time.Time  // waitlist.created_at
	UpdatedAt  time.Time  // waitlist.updated_at
}
