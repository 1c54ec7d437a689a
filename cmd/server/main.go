package main // Entry point package

import (
	"log"  // startup logging
	"time" // policy durations

	"github.com/joho/godotenv"    // .env loader for local development
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/reformery/studio-booking/internal/config"
	"github.com/reformery/studio-booking/internal/database"
	"github.com/reformery/studio-booking/internal/handler"
	"github.com/reformery/studio-booking/internal/middleware"
	"github.com/reformery/studio-booking/internal/queue"
	"github.com/reformery/studio-booking/internal/repository"
	"github.com/reformery/studio-booking/internal/router"
	"github.com/reformery/studio-booking/internal/service"
)

func main() {
	// Load .env when present; real environments set variables directly.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on environment")
	}
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Repositories share the single connection pool.
	members := repository.NewMemberRepo(db)
	tokens := repository.NewTokenRepo(db)
	classes := repository.NewClassRepo(db)
	slots := repository.NewSlotRepo(db)
	grants := repository.NewGrantRepo(db)
	reservations := repository.NewReservationRepo(db)
	waitlist := repository.NewWaitlistRepo(db)

	policy := service.Policy{
		CancelCutoff: time.Duration(cfg.CancelCutoffHours) * time.Hour,
		Window:       time.Duration(cfg.BookingWindowDays) * 24 * time.Hour,
		MaxActive:    cfg.MaxActiveReservations,
	}
	thresholds := service.AlertThresholds{
		LowBalance: uint32(cfg.LowBalanceThreshold),
		ExpiryDays: cfg.ExpiryAlertDays,
		SlotSpots:  service.DefaultAlertThresholds().SlotSpots,
	}
	booking := service.NewBookingService(grants, reservations, waitlist, queue.NewPublisher(), policy)

	authH := handler.NewAuthHandler(cfg, members, tokens)
	bookingH := handler.NewBookingHandler(booking, grants, reservations, waitlist, thresholds)
	scheduleH := handler.NewScheduleHandler(slots, classes, reservations, cfg.Location(), thresholds)
	adminH := handler.NewAdminHandler(classes, slots, grants, reservations, booking)

	e := echo.New()

	// Redis-backed rate limiting and response caching.  Both degrade to
	// no-ops when Redis is unreachable.  The cache applies only to the
	// public schedule routes: responses behind authentication are
	// per-member and must never be served from a shared cache entry.
	rdb := config.NewRedisClient()
	var publicMW []echo.MiddlewareFunc
	if rdb == nil {
		log.Println("redis unavailable; rate limiting and caching disabled")
	} else {
		e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
		publicMW = append(publicMW, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	}

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, scheduleH, publicMW...)
	router.RegisterMember(e, bookingH, cfg.JWTSecret)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	// Background consumer turning booking events into the activity log.
	go func() {
		if err := queue.StartActivityConsumer(); err != nil {
			log.Printf("activity consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
