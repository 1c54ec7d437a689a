package service

import (
	"sort"
	"time"

	"github.com/reformery/studio-booking/internal/model"
)

// The weekly calendar shows Monday through Saturday between 06:00 and
// 21:00 studio-local time, matching the studio's opening hours.
const (
	CalendarDays      = 6
	CalendarFirstHour = 6
	CalendarLastHour  = 21
)

// SlotView is one cell entry on the weekly calendar: a slot annotated
// with catalog names and current occupancy.  Handlers build these from
// repository rows; the projector itself never reads storage.
type SlotView struct {
	ID             uint64    `json:"id"`
	ClassName      string    `json:"class_name"`
	InstructorName string    `json:"instructor_name"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Status         string    `json:"status"`
	MaxCapacity    uint32    `json:"max_capacity"`
	Confirmed      uint32    `json:"confirmed"`
}

// SpotsLeft returns the number of free spots on the slot.
func (v SlotView) SpotsLeft() uint32 {
	if v.Confirmed >= v.MaxCapacity {
		return 0
	}
	return v.MaxCapacity - v.Confirmed
}

// WeekGrid is the projection of one week of slots onto day × hour
// buckets.  Days index 0..5 (Monday..Saturday); Hours maps the local
// start hour to the slots beginning in that hour, ordered by start
// time then ID.
type WeekGrid struct {
	WeekStart time.Time                        `json:"week_start"`
	Days      [CalendarDays]map[int][]SlotView `json:"days"`
}

// StartOfWeek returns the Monday 00:00 of the week containing t, in
// t's location.
func StartOfWeek(t time.Time) time.Time {
	// time.Weekday numbers Sunday as 0; shift so Monday is the origin.
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}

// ProjectWeek buckets the given slots into the week starting at
// weekStart (expected to be a Monday).  Slots are placed by weekday
// and start hour in loc; CANCELLED slots, slots outside Monday to
// Saturday and slots outside the displayed hours are excluded.  The
// function is pure: same inputs, same grid.
func ProjectWeek(weekStart time.Time, slots []SlotView, loc *time.Location) WeekGrid {
	if loc == nil {
		loc = time.UTC
	}
	grid := WeekGrid{WeekStart: weekStart}
	for i := range grid.Days {
		grid.Days[i] = make(map[int][]SlotView)
	}
	weekEnd := weekStart.AddDate(0, 0, CalendarDays)
	for _, v := range slots {
		if v.Status == model.SlotCancelled {
			continue
		}
		local := v.StartsAt.In(loc)
		if local.Before(weekStart) || !local.Before(weekEnd) {
			continue
		}
		day := (int(local.Weekday()) + 6) % 7
		if day >= CalendarDays { // Sunday
			continue
		}
		hour := local.Hour()
		if hour < CalendarFirstHour || hour > CalendarLastHour {
			continue
		}
		grid.Days[day][hour] = append(grid.Days[day][hour], v)
	}
	// Stable, deterministic ordering inside each bucket.
	for d := range grid.Days {
		for h := range grid.Days[d] {
			bucket := grid.Days[d][h]
			sort.Slice(bucket, func(i, j int) bool {
				if !bucket[i].StartsAt.Equal(bucket[j].StartsAt) {
					return bucket[i].StartsAt.Before(bucket[j].StartsAt)
				}
				return bucket[i].ID < bucket[j].ID
			})
		}
	}
	return grid
}
