// Package service implements the booking engine: the orchestrator that
// coordinates the package ledger and the reservation ledger, plus the
// pure read models (calendar projection, advisories).  The engine has
// no hidden state; every operation takes an explicit context and
// completes in one bounded step or triggers one bounded compensating
// step.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/reformery/studio-booking/internal/model"
	"github.com/reformery/studio-booking/internal/repository"
)

// PackageLedger is the balance side of a booking: one debit funds one
// reservation, one credit returns it.  Implemented by
// repository.GrantRepo.
type PackageLedger interface {
	// Debit consumes one class from the member's earliest-expiring
	// eligible grant and returns the grant ID, or ErrNoActiveBalance.
	Debit(ctx context.Context, memberID uint64, asOf time.Time) (uint64, error)
	// Credit returns one class to the grant while it is still valid.
	// Expired grants report (false, nil): the credit is a recorded
	// no-op, not a failure.
	Credit(ctx context.Context, grantID uint64, asOf time.Time) (bool, error)
}

// ReservationLedger is the capacity side of a booking.  Implemented by
// repository.ReservationRepo.
type ReservationLedger interface {
	Reserve(ctx context.Context, slotID, memberID, grantID uint64, asOf time.Time, window time.Duration, maxActive int) (*model.Reservation, error)
	Cancel(ctx context.Context, reservationID uint64, cutoff time.Duration, asOf time.Time) (repository.CancelOutcome, error)
	Find(ctx context.Context, reservationID uint64) (*model.Reservation, error)
}

// Waitlist is the queue of members waiting on full slots.  Only the
// notification path is needed by the orchestrator; joining and leaving
// go through the handler directly.  NextWaiting reports an empty queue
// as sql.ErrNoRows.
type Waitlist interface {
	NextWaiting(ctx context.Context, slotID uint64) (*model.WaitlistEntry, error)
	MarkNotified(ctx context.Context, entryID uint64, at time.Time) error
}

// EventPublisher delivers domain events to interested consumers.
// Publishing is best effort: a broker outage must never fail a
// booking.  Implemented by the queue package.
type EventPublisher interface {
	BookingConfirmed(ctx context.Context, reservationID, memberID, slotID uint64, at time.Time)
	BookingCancelled(ctx context.Context, reservationID, memberID, slotID uint64, refunded bool, at time.Time)
	WaitlistSpot(ctx context.Context, memberID, slotID uint64, at time.Time)
}

// Policy holds the booking rules an operator can tune.  Zero values
// disable the window and cap checks.
type Policy struct {
	CancelCutoff time.Duration // minimum lead time for a refundable cancellation
	Window       time.Duration // how far ahead a slot may be booked
	MaxActive    int           // cap on upcoming confirmed reservations per member
}

// ConsistencyError reports a compensating credit that could not be
// applied: the member has been charged without holding a reservation.
// It is not recoverable by the caller and requires operator
// reconciliation, which is why it carries the grant involved.
type ConsistencyError struct {
	GrantID  uint64
	MemberID uint64
	Cause    error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("debit reversal failed for grant %d (member %d): %v", e.GrantID, e.MemberID, e.Cause)
}

func (e *ConsistencyError) Unwrap() error { return e.Cause }

// BookingService is the entry point the HTTP layer talks to.  It
// performs a reservation or cancellation as one logically atomic unit:
// debit-then-reserve on booking, cancel-then-credit on cancellation,
// with a compensating credit when the reserve step fails.  The order
// is fixed; a failed debit never reaches the slot and a failed
// reserve never burns a class.
type BookingService struct {
	Grants       PackageLedger
	Reservations ReservationLedger
	Waitlist     Waitlist       // optional; nil disables waitlist notification
	Events       EventPublisher // optional; nil disables event publishing
	Policy       Policy
	Now          func() time.Time // injectable clock; defaults to time.Now
}

// NewBookingService constructs a BookingService.  Grants and
// Reservations must be non-nil; Waitlist and Events may be nil.
func NewBookingService(grants PackageLedger, reservations ReservationLedger, wl Waitlist, events EventPublisher, policy Policy) *BookingService {
	if grants == nil || reservations == nil {
		panic("nil ledger passed to NewBookingService")
	}
	return &BookingService{
		Grants:       grants,
		Reservations: reservations,
		Waitlist:     wl,
		Events:       events,
		Policy:       policy,
		Now:          time.Now,
	}
}

func (s *BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// BookClass reserves one spot in the slot for the member, funded by
// one unit of their earliest-expiring grant.
//
// The debit runs first so a slot is never held without funding.  When
// the reserve step fails the debit is reversed before the error is
// returned; the reversal is retried once (Credit is idempotent with
// respect to over-crediting) and a reversal that still fails surfaces
// as *ConsistencyError.
//
// Policy errors pass through untranslated: ErrNoActiveBalance,
// ErrSlotFull, ErrAlreadyReserved, ErrSlotNotBookable,
// ErrSlotNotFound, ErrReservationLimit.
func (s *BookingService) BookClass(ctx context.Context, memberID, slotID uint64) (*model.Reservation, error) {
	asOf := s.now()
	grantID, err := s.Grants.Debit(ctx, memberID, asOf)
	if err != nil {
		return nil, err
	}
	res, err := s.Reservations.Reserve(ctx, slotID, memberID, grantID, asOf, s.Policy.Window, s.Policy.MaxActive)
	if err != nil {
		// Compensating action: give the class back before reporting
		// the reservation failure.
		if _, crErr := s.Grants.Credit(ctx, grantID, asOf); crErr != nil {
			if _, retryErr := s.Grants.Credit(ctx, grantID, asOf); retryErr != nil {
				log.Printf("CONSISTENCY: debit reversal failed: member=%d grant=%d cause=%v", memberID, grantID, retryErr)
				return nil, &ConsistencyError{GrantID: grantID, MemberID: memberID, Cause: retryErr}
			}
		}
		return nil, err
	}
	if s.Events != nil {
		s.Events.BookingConfirmed(ctx, res.ID, memberID, slotID, asOf)
	}
	return res, nil
}

// CancelReservation cancels the reservation on behalf of the member.
// admin callers may cancel any reservation; members only their own.
// The returned bool reports whether a package credit was actually
// applied: cancellations inside the cutoff free the spot but do not
// refund, and a refundable cancellation against a since-expired grant
// reports false as well.
//
// Possible errors: ErrReservationNotFound, ErrForbidden,
// ErrAlreadyCancelled.
func (s *BookingService) CancelReservation(ctx context.Context, memberID uint64, admin bool, reservationID uint64) (bool, error) {
	asOf := s.now()
	rec, err := s.Reservations.Find(ctx, reservationID)
	if err != nil {
		return false, err
	}
	if !admin && rec.MemberID != memberID {
		return false, repository.ErrForbidden
	}
	return s.cancel(ctx, reservationID, false, asOf)
}

// CancelForSlotClosure cancels a reservation because the studio
// withdrew the slot.  The cutoff does not apply: the cancellation is
// not the member's doing, so the class is credited back however close
// to the start it happens.  The waitlist is left alone; a cancelled
// slot has no spot to offer.
func (s *BookingService) CancelForSlotClosure(ctx context.Context, reservationID uint64) (bool, error) {
	return s.cancel(ctx, reservationID, true, s.now())
}

func (s *BookingService) cancel(ctx context.Context, reservationID uint64, slotClosure bool, asOf time.Time) (bool, error) {
	out, err := s.Reservations.Cancel(ctx, reservationID, s.Policy.CancelCutoff, asOf)
	if err != nil {
		return false, err
	}
	refunded := false
	if out.Refundable || slotClosure {
		applied, crErr := s.Grants.Credit(ctx, out.GrantID, asOf)
		if crErr != nil {
			// The spot is already freed; the credit is the one step
			// where a retry is appropriate.
			applied, crErr = s.Grants.Credit(ctx, out.GrantID, asOf)
			if crErr != nil {
				log.Printf("CONSISTENCY: refund credit failed: member=%d grant=%d cause=%v", out.MemberID, out.GrantID, crErr)
				return false, &ConsistencyError{GrantID: out.GrantID, MemberID: out.MemberID, Cause: crErr}
			}
		}
		refunded = applied
	}
	if s.Events != nil {
		s.Events.BookingCancelled(ctx, reservationID, out.MemberID, out.SlotID, refunded, asOf)
	}
	if !slotClosure {
		s.notifyWaitlist(ctx, out.SlotID, asOf)
	}
	return refunded, nil
}

// notifyWaitlist tells the head of the slot's waitlist that a spot
// opened up.  Failures are logged and swallowed; the cancellation has
// already succeeded.
func (s *BookingService) notifyWaitlist(ctx context.Context, slotID uint64, asOf time.Time) {
	if s.Waitlist == nil {
		return
	}
	entry, err := s.Waitlist.NextWaiting(ctx, slotID)
	if err != nil {
		// An empty queue is the normal case; anything else is a lookup
		// failure that must not pass for "nobody waiting" silently.
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("waitlist: next waiting lookup failed: slot=%d err=%v", slotID, err)
		}
		return
	}
	if entry == nil {
		return
	}
	if err := s.Waitlist.MarkNotified(ctx, entry.ID, asOf); err != nil {
		log.Printf("waitlist: mark notified failed: entry=%d err=%v", entry.ID, err)
		return
	}
	if s.Events != nil {
		s.Events.WaitlistSpot(ctx, entry.MemberID, slotID, asOf)
	}
}
