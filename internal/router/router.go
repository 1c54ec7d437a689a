package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used for routing

	"github.com/reformery/studio-booking/internal/handler"
	"github.com/reformery/studio-booking/internal/middleware"
	"github.com/reformery/studio-booking/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring systems probe this endpoint to
	// verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes and applies
// the necessary middleware.  Unauthenticated operations live under
// /v1/auth, while protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Issues a new access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout does not require JWT middleware: it accepts either a
	// refresh token in the body or a bearer access token, see handler.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleAdmin, model.RoleInstructor, model.RoleClient))
	auth.GET("/me", a.Me)

	// Same handler at the top level so clients can terminate a session
	// with either path.
	e.POST("/v1/logout", a.Logout)
}

// RegisterPublic registers the unauthenticated schedule surface: the
// weekly calendar, the class catalog and slot details.  These routes
// apply no JWT or role middleware so guests can browse the studio's
// offering before signing up.  mw carries the response cache when
// Redis is available; these are the only routes whose responses are
// identical for every caller, so the cache lives here and nowhere
// else.
func RegisterPublic(e *echo.Echo, s *handler.ScheduleHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/v1", mw...)
	// Weekly calendar grid; optional ?week=YYYY-MM-DD selects the week.
	g.GET("/calendar", s.WeekCalendar)
	// Active class catalog.
	g.GET("/classes", s.ListClasses)
	// One slot with its occupancy and near-capacity advisory.
	g.GET("/slots/:id", s.SlotDetail)
}

// RegisterMember registers member-scoped endpoints under /v1.  All
// routes require a valid JWT; booking endpoints are open to every
// authenticated role since staff also attend classes.
func RegisterMember(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleInstructor, model.RoleClient),
	)
	g.POST("/slots/:id/book", h.Book)
	g.DELETE("/reservations/:id", h.CancelReservation)
	g.GET("/me/reservations", h.MyReservations)
	g.GET("/me/balance", h.MyBalance)
	g.POST("/slots/:id/waitlist", h.JoinWaitlist)
	g.DELETE("/slots/:id/waitlist", h.LeaveWaitlist)
}

// RegisterAdmin registers the studio-management surface.  Catalog,
// scheduling and package endpoints require the ADMIN role; attendance
// marking is shared with instructors.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	admin := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.POST("/classes", h.CreateClass)
	admin.POST("/slots", h.CreateSlot)
	admin.POST("/slots/:id/cancel", h.CancelSlot)
	admin.GET("/slots/:id/roster", h.Roster)
	admin.POST("/grants", h.CreateGrant)
	admin.GET("/members/:id/grants", h.MemberGrants)

	staff := e.Group(
		"/v1/staff",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleInstructor),
	)
	staff.POST("/reservations/:id/attendance", h.MarkAttendance)
	staff.GET("/slots/:id/roster", h.Roster)
}
