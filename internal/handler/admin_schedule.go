package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/reformery/studio-booking/internal/model"
	"github.com/reformery/studio-booking/internal/repository"
	"github.com/reformery/studio-booking/internal/service"
)

// AdminHandler exposes the studio-management surface: maintaining the
// class catalog, scheduling and cancelling slots, selling packages,
// viewing rosters and marking attendance.  Routes using it are wrapped
// in RequireRole(ADMIN) (attendance also admits instructors).
type AdminHandler struct {
	Classes      *repository.ClassRepo
	Slots        *repository.SlotRepo
	Grants       *repository.GrantRepo
	Reservations *repository.ReservationRepo
	Booking      *service.BookingService
}

// NewAdminHandler constructs an AdminHandler and panics on nil deps.
func NewAdminHandler(classes *repository.ClassRepo, slots *repository.SlotRepo, grants *repository.GrantRepo, reservations *repository.ReservationRepo, booking *service.BookingService) *AdminHandler {
	if classes == nil || slots == nil || grants == nil || reservations == nil || booking == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Classes: classes, Slots: slots, Grants: grants, Reservations: reservations, Booking: booking}
}

// ----- DTOs -----

type createClassReq struct {
	Name            string  `json:"name"`
	Description     *string `json:"description"`
	DurationMinutes uint32  `json:"duration_minutes"`
	MaxCapacity     uint32  `json:"max_capacity"`
	Category        *string `json:"category"`
	Intensity       *string `json:"intensity"`
}

type createSlotReq struct {
	ClassTypeID  uint64    `json:"class_type_id"`
	InstructorID uint64    `json:"instructor_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	MaxCapacity  uint32    `json:"max_capacity"` // 0 inherits the class default
	Notes        *string   `json:"notes"`
}

type createGrantReq struct {
	MemberID     uint64    `json:"member_id"`
	PackageName  string    `json:"package_name"`
	TotalClasses uint32    `json:"total_classes"`
	PriceCents   uint32    `json:"price_cents"`
	StartsAt     time.Time `json:"starts_at"`  // zero value means now
	ExpiresAt    time.Time `json:"expires_at"` // zero value means starts_at + 30 days
}

type attendanceReq struct {
	Attended bool `json:"attended"`
}

// CreateClass handles POST /v1/admin/classes.
func (h *AdminHandler) CreateClass(c echo.Context) error {
	var req createClassReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.DurationMinutes == 0 || req.MaxCapacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, duration_minutes and max_capacity are required"})
	}
	ct := &model.ClassType{
		Name:            req.Name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		MaxCapacity:     req.MaxCapacity,
		Category:        req.Category,
		Intensity:       req.Intensity,
		IsActive:        true,
	}
	if err := h.Classes.Create(c.Request().Context(), ct); err != nil {
		if errors.Is(err, repository.ErrClassNameExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "class name already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create class failed"})
	}
	return c.JSON(http.StatusCreated, ct)
}

// CreateSlot handles POST /v1/admin/slots.  The slot inherits the
// class capacity unless the request overrides it.
func (h *AdminHandler) CreateSlot(c echo.Context) error {
	var req createSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.ClassTypeID == 0 || req.InstructorID == 0 || req.StartsAt.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "class_type_id, instructor_id and starts_at are required"})
	}
	ctx := c.Request().Context()
	class, err := h.Classes.GetByID(ctx, req.ClassTypeID)
	if err != nil {
		if errors.Is(err, repository.ErrClassNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	startsAt := req.StartsAt.UTC()
	endsAt := req.EndsAt.UTC()
	if req.EndsAt.IsZero() {
		endsAt = startsAt.Add(time.Duration(class.DurationMinutes) * time.Minute)
	}
	if !endsAt.After(startsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be after starts_at"})
	}
	capacity := req.MaxCapacity
	if capacity == 0 {
		capacity = class.MaxCapacity
	}
	slot := &model.ClassSlot{
		ClassTypeID:  req.ClassTypeID,
		InstructorID: req.InstructorID,
		StartsAt:     startsAt,
		EndsAt:       endsAt,
		MaxCapacity:  capacity,
		Status:       model.SlotScheduled,
		Notes:        req.Notes,
	}
	if err := h.Slots.Create(ctx, slot); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create slot failed"})
	}
	return c.JSON(http.StatusCreated, slot)
}

// CancelSlot handles POST /v1/admin/slots/:id/cancel.  Every confirmed
// reservation on the slot is cancelled through the booking service's
// slot-closure path, so each member gets their class credited back
// regardless of the cutoff.
func (h *AdminHandler) CancelSlot(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	ctx := c.Request().Context()
	roster, err := h.Reservations.ListBySlot(ctx, slotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if err := h.Slots.UpdateStatus(ctx, slotID, model.SlotCancelled); err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "slot is not in a cancellable state"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel slot failed"})
	}
	refunded := 0
	for _, res := range roster {
		if res.Status != model.ReservationConfirmed {
			continue
		}
		if ok, err := h.Booking.CancelForSlotClosure(ctx, res.ID); err == nil && ok {
			refunded++
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": true, "reservations_refunded": refunded})
}

// Roster handles GET /v1/admin/slots/:id/roster.
func (h *AdminHandler) Roster(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	roster, err := h.Reservations.ListBySlot(c.Request().Context(), slotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": roster})
}

// CreateGrant handles POST /v1/admin/grants: recording a package
// purchase for a member.
func (h *AdminHandler) CreateGrant(c echo.Context) error {
	var req createGrantReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.PackageName = strings.TrimSpace(req.PackageName)
	if req.MemberID == 0 || req.PackageName == "" || req.TotalClasses == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "member_id, package_name and total_classes are required"})
	}
	startsAt := req.StartsAt.UTC()
	if req.StartsAt.IsZero() {
		startsAt = time.Now().UTC()
	}
	expiresAt := req.ExpiresAt.UTC()
	if req.ExpiresAt.IsZero() {
		expiresAt = startsAt.AddDate(0, 0, 30)
	}
	if !expiresAt.After(startsAt) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "expires_at must be after starts_at"})
	}
	g := &model.PackageGrant{
		MemberID:     req.MemberID,
		PackageName:  req.PackageName,
		TotalClasses: req.TotalClasses,
		PricePaid:    req.PriceCents,
		StartsAt:     startsAt,
		ExpiresAt:    expiresAt,
		Status:       model.GrantActive,
	}
	if err := h.Grants.Create(c.Request().Context(), g); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create grant failed"})
	}
	return c.JSON(http.StatusCreated, g)
}

// MemberGrants handles GET /v1/admin/members/:id/grants.
func (h *AdminHandler) MemberGrants(c echo.Context) error {
	memberID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}
	grants, err := h.Grants.ListByMember(c.Request().Context(), memberID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"grants": grants})
}

// MarkAttendance handles POST /v1/staff/reservations/:id/attendance.
// Instructors and admins record whether the member showed up; the
// reservation moves from CONFIRMED to ATTENDED or NO_SHOW.
func (h *AdminHandler) MarkAttendance(c echo.Context) error {
	reservationID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var req attendanceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	err := h.Reservations.MarkAttendance(c.Request().Context(), reservationID, req.Attended)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not confirmed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "attendance update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
