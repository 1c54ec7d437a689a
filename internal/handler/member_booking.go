package handler

import (
	"errors"   // errors.Is comparisons against repository sentinels
	"net/http" // HTTP status codes
	"time"     // evaluation instants for advisories

	"github.com/labstack/echo/v4"

	"github.com/reformery/studio-booking/internal/repository"
	"github.com/reformery/studio-booking/internal/service"
)

// BookingHandler exposes the member-facing booking flow: reserving a
// spot, cancelling, listing reservations and reading the package
// balance with its advisories.  JWT authentication and role checks are
// performed by middleware; every method still re-extracts the member
// ID and returns 401 when it is missing.
type BookingHandler struct {
	Booking      *service.BookingService
	Grants       *repository.GrantRepo
	Reservations *repository.ReservationRepo
	Waitlist     *repository.WaitlistRepo
	Thresholds   service.AlertThresholds
}

// NewBookingHandler constructs a BookingHandler.  All repositories and
// the booking service must be non-nil.
func NewBookingHandler(booking *service.BookingService, grants *repository.GrantRepo, reservations *repository.ReservationRepo, wl *repository.WaitlistRepo, th service.AlertThresholds) *BookingHandler {
	if booking == nil || grants == nil || reservations == nil || wl == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Booking: booking, Grants: grants, Reservations: reservations, Waitlist: wl, Thresholds: th}
}

// Book handles POST /v1/slots/:id/book.  One class is debited from the
// member's earliest-expiring package and a confirmed reservation is
// created, or neither happens.
func (h *BookingHandler) Book(c echo.Context) error {
	memberID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}

	res, err := h.Booking.BookClass(c.Request().Context(), memberID, slotID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNoActiveBalance):
			return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "no active package with remaining classes"})
		case errors.Is(err, repository.ErrSlotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		case errors.Is(err, repository.ErrSlotFull):
			return c.JSON(http.StatusConflict, echo.Map{"error": "class is full"})
		case errors.Is(err, repository.ErrAlreadyReserved):
			return c.JSON(http.StatusConflict, echo.Map{"error": "already reserved for this class"})
		case errors.Is(err, repository.ErrSlotNotBookable):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "slot is not open for booking"})
		case errors.Is(err, repository.ErrReservationLimit):
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "too many upcoming reservations"})
		}
		var cerr *service.ConsistencyError
		if errors.As(err, &cerr) {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed; balance is being reconciled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
	}
	return c.JSON(http.StatusCreated, res)
}

// CancelReservation handles DELETE /v1/reservations/:id.  Members may
// only cancel their own reservations; admins may cancel any.  The
// response reports whether the class was credited back.
func (h *BookingHandler) CancelReservation(c echo.Context) error {
	memberID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reservationID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}

	refunded, err := h.Booking.CancelReservation(c.Request().Context(), memberID, isAdmin(c), reservationID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrAlreadyCancelled):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already cancelled"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": true, "refunded": refunded})
}

// MyReservations handles GET /v1/me/reservations.
func (h *BookingHandler) MyReservations(c echo.Context) error {
	memberID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Reservations.ListByMember(c.Request().Context(), memberID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": list})
}

// MyBalance handles GET /v1/me/balance.  It returns the member's
// grants together with the advisories derived from them: low balance,
// imminent expiry or no active package at all.
func (h *BookingHandler) MyBalance(c echo.Context) error {
	memberID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	grants, err := h.Grants.ListByMember(c.Request().Context(), memberID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	now := time.Now().UTC()
	remaining := uint32(0)
	for i := range grants {
		if grants[i].Usable(now) {
			remaining += grants[i].Remaining()
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"grants":     grants,
		"remaining":  remaining,
		"advisories": service.EvaluateGrants(grants, h.Thresholds, now),
	})
}

// JoinWaitlist handles POST /v1/slots/:id/waitlist.
func (h *BookingHandler) JoinWaitlist(c echo.Context) error {
	memberID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	entry, err := h.Waitlist.Join(c.Request().Context(), memberID, slotID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		case errors.Is(err, repository.ErrAlreadyWaitlisted):
			return c.JSON(http.StatusConflict, echo.Map{"error": "already on the waitlist"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "waitlist join failed"})
	}
	return c.JSON(http.StatusCreated, entry)
}

// LeaveWaitlist handles DELETE /v1/slots/:id/waitlist.
func (h *BookingHandler) LeaveWaitlist(c echo.Context) error {
	memberID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	if err := h.Waitlist.Leave(c.Request().Context(), memberID, slotID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "waitlist leave failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
