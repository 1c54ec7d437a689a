package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/reformery/studio-booking/internal/repository"
	"github.com/reformery/studio-booking/internal/service"
)

// ScheduleHandler serves the public, unauthenticated schedule surface:
// the weekly calendar grid, the class catalog and single slot details.
// These endpoints are read-only and sit behind the response cache
// middleware.
type ScheduleHandler struct {
	Slots        *repository.SlotRepo
	Classes      *repository.ClassRepo
	Reservations *repository.ReservationRepo
	Location     *time.Location // studio timezone the grid is rendered in
	Thresholds   service.AlertThresholds
}

// NewScheduleHandler constructs a ScheduleHandler.
func NewScheduleHandler(slots *repository.SlotRepo, classes *repository.ClassRepo, reservations *repository.ReservationRepo, loc *time.Location, th service.AlertThresholds) *ScheduleHandler {
	if slots == nil || classes == nil || reservations == nil {
		panic("nil repository passed to NewScheduleHandler")
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ScheduleHandler{Slots: slots, Classes: classes, Reservations: reservations, Location: loc, Thresholds: th}
}

// WeekCalendar handles GET /v1/calendar.  An optional ?week=2026-03-02
// query selects the week; any date inside the week works, the grid
// always starts on Monday.  Defaults to the current week.
func (h *ScheduleHandler) WeekCalendar(c echo.Context) error {
	anchor := time.Now().In(h.Location)
	if raw := c.QueryParam("week"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, h.Location)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid week date, expected YYYY-MM-DD"})
		}
		anchor = parsed
	}
	weekStart := service.StartOfWeek(anchor)
	weekEnd := weekStart.AddDate(0, 0, service.CalendarDays)

	ctx := c.Request().Context()
	details, err := h.Slots.ListBetween(ctx, weekStart, weekEnd)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	views, err := h.slotViews(c, details)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	grid := service.ProjectWeek(weekStart, views, h.Location)

	// Near-capacity advisories for the whole week, so the UI can badge
	// cells without a second request.
	advisories := make([]service.Advisory, 0)
	for _, v := range views {
		if a := service.EvaluateSlot(v, h.Thresholds); a != nil {
			advisories = append(advisories, *a)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"calendar": grid, "advisories": advisories})
}

// ListClasses handles GET /v1/classes: the active class catalog.
func (h *ScheduleHandler) ListClasses(c echo.Context) error {
	classes, err := h.Classes.ListActive(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"classes": classes})
}

// SlotDetail handles GET /v1/slots/:id: one slot with its occupancy.
func (h *ScheduleHandler) SlotDetail(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	ctx := c.Request().Context()
	slot, err := h.Slots.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	class, err := h.Classes.GetByID(ctx, slot.ClassTypeID)
	if err != nil && !errors.Is(err, repository.ErrClassNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	confirmed, err := h.Reservations.CountConfirmed(ctx, slotID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	view := service.SlotView{
		ID:          slot.ID,
		StartsAt:    slot.StartsAt,
		EndsAt:      slot.EndsAt,
		Status:      slot.Status,
		MaxCapacity: slot.MaxCapacity,
		Confirmed:   confirmed,
	}
	if class != nil {
		view.ClassName = class.Name
	}
	resp := echo.Map{"slot": view, "spots_left": view.SpotsLeft()}
	if a := service.EvaluateSlot(view, h.Thresholds); a != nil {
		resp["advisory"] = a
	}
	return c.JSON(http.StatusOK, resp)
}

// slotViews joins slot details with their confirmed counts in one
// batched query.
func (h *ScheduleHandler) slotViews(c echo.Context, details []repository.SlotDetail) ([]service.SlotView, error) {
	ids := make([]uint64, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.Slot.ID)
	}
	counts, err := h.Reservations.CountConfirmedBySlots(c.Request().Context(), ids)
	if err != nil {
		return nil, err
	}
	views := make([]service.SlotView, 0, len(details))
	for _, d := range details {
		views = append(views, service.SlotView{
			ID:             d.Slot.ID,
			ClassName:      d.ClassName,
			InstructorName: d.InstructorName,
			StartsAt:       d.Slot.StartsAt,
			EndsAt:         d.Slot.EndsAt,
			Status:         d.Slot.Status,
			MaxCapacity:    d.Slot.MaxCapacity,
			Confirmed:      counts[d.Slot.ID],
		})
	}
	return views, nil
}
