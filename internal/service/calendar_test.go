package service

import (
	"testing"
	"time"

	"github.com/reformery/studio-booking/internal/model"
)

func view(id uint64, startsAt time.Time, status string) SlotView {
	return SlotView{
		ID:             id,
		ClassName:      "Reformer Flow",
		InstructorName: "Dana",
		StartsAt:       startsAt,
		EndsAt:         startsAt.Add(50 * time.Minute),
		Status:         status,
		MaxCapacity:    10,
	}
}

func TestStartOfWeekIsMonday(t *testing.T) {
	// Wednesday afternoon → the Monday of the same week, at midnight.
	wed := time.Date(2026, time.March, 4, 15, 30, 0, 0, time.UTC)
	equals(t, time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC), StartOfWeek(wed))

	// Monday maps to itself, Sunday to the Monday six days earlier.
	mon := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	equals(t, mon, StartOfWeek(mon))
	sun := time.Date(2026, time.March, 8, 9, 0, 0, 0, time.UTC)
	equals(t, mon, StartOfWeek(sun))
}

func TestProjectWeekBucketsByDayAndHour(t *testing.T) {
	weekStart := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	wed10 := weekStart.AddDate(0, 0, 2).Add(10 * time.Hour)

	grid := ProjectWeek(weekStart, []SlotView{view(1, wed10, model.SlotScheduled)}, time.UTC)

	bucket := grid.Days[2][10] // Wednesday, 10:00
	equals(t, 1, len(bucket))
	equals(t, uint64(1), bucket[0].ID)

	// Every other cell stays empty.
	total := 0
	for d := range grid.Days {
		for _, b := range grid.Days[d] {
			total += len(b)
		}
	}
	equals(t, 1, total)
}

func TestProjectWeekExcludesCancelledAndOutOfRange(t *testing.T) {
	weekStart := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	thu18 := weekStart.AddDate(0, 0, 3).Add(18 * time.Hour)

	slots := []SlotView{
		view(1, thu18, model.SlotCancelled),                           // cancelled
		view(2, weekStart.AddDate(0, 0, 6).Add(10*time.Hour), model.SlotScheduled), // Sunday
		view(3, weekStart.AddDate(0, 0, 1).Add(5*time.Hour), model.SlotScheduled),  // before opening
		view(4, weekStart.AddDate(0, 0, 1).Add(22*time.Hour), model.SlotScheduled), // after closing
		view(5, weekStart.AddDate(0, 0, -1).Add(10*time.Hour), model.SlotScheduled), // previous week
		view(6, weekStart.AddDate(0, 0, 7).Add(10*time.Hour), model.SlotScheduled),  // next week
	}
	grid := ProjectWeek(weekStart, slots, time.UTC)

	for d := range grid.Days {
		for h, b := range grid.Days[d] {
			assert(t, len(b) == 0, "day %d hour %d should be empty, has %d entries", d, h, len(b))
		}
	}
}

func TestProjectWeekOrdersBuckets(t *testing.T) {
	weekStart := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	sat9 := weekStart.AddDate(0, 0, 5).Add(9 * time.Hour)

	slots := []SlotView{
		view(7, sat9.Add(30*time.Minute), model.SlotScheduled),
		view(9, sat9, model.SlotScheduled),
		view(8, sat9, model.SlotScheduled), // same start as 9, lower ID wins
	}
	grid := ProjectWeek(weekStart, slots, time.UTC)

	bucket := grid.Days[5][9]
	equals(t, 3, len(bucket))
	equals(t, uint64(8), bucket[0].ID)
	equals(t, uint64(9), bucket[1].ID)
	equals(t, uint64(7), bucket[2].ID)
}

func TestProjectWeekUsesLocation(t *testing.T) {
	weekStart := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.FixedZone("studio", 3*3600))
	// 06:00 UTC on Tuesday is 09:00 studio time.
	tue6utc := time.Date(2026, time.March, 3, 6, 0, 0, 0, time.UTC)

	grid := ProjectWeek(weekStart, []SlotView{view(1, tue6utc, model.SlotScheduled)}, weekStart.Location())
	equals(t, 1, len(grid.Days[1][9]))
}

func TestSpotsLeftNeverUnderflows(t *testing.T) {
	v := SlotView{MaxCapacity: 10, Confirmed: 7}
	equals(t, uint32(3), v.SpotsLeft())
	v.Confirmed = 12 // over-count from stale snapshot
	equals(t, uint32(0), v.SpotsLeft())
}
