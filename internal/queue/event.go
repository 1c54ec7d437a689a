// Package queue defines the domain events exchanged over the message
// broker, the best-effort publisher and the background consumer that
// turns events into the studio's activity log.
package queue

// Queue names double as routing keys on the default exchange.
const (
	BookingConfirmedQueue = "booking.confirmed"
	BookingCancelledQueue = "booking.cancelled"
	WaitlistSpotQueue     = "waitlist.spot"
)

// BookingConfirmedEvent is published when a reservation is confirmed.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type BookingConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	MemberID      uint64 `json:"member_id"`
	SlotID        uint64 `json:"slot_id"`
	ConfirmedAt   string `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a reservation is cancelled.
// Refunded reports whether a package credit was applied.
type BookingCancelledEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	MemberID      uint64 `json:"member_id"`
	SlotID        uint64 `json:"slot_id"`
	Refunded      bool   `json:"refunded"`
	CancelledAt   string `json:"cancelled_at"`
}

// WaitlistSpotEvent is published when a cancellation frees a spot and
// the head of the slot's waitlist is notified.
type WaitlistSpotEvent struct {
	MemberID   uint64 `json:"member_id"`
	SlotID     uint64 `json:"slot_id"`
	NotifiedAt string `json:"notified_at"`
}
