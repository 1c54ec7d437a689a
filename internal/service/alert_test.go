package service

import (
	"testing"
	"time"

	"github.com/reformery/studio-booking/internal/model"
)

func codes(advisories []Advisory) []string {
	out := make([]string, 0, len(advisories))
	for _, a := range advisories {
		out = append(out, a.Code)
	}
	return out
}

func TestEvaluateGrantsLowBalanceAndExpiry(t *testing.T) {
	th := DefaultAlertThresholds()
	grants := []model.PackageGrant{
		*grant(1, 10, 8, 6, 4*24*time.Hour), // 2 left, 4 days → both alerts
	}
	advisories := EvaluateGrants(grants, th, testNow)
	equals(t, []string{AlertLowBalance, AlertExpiringSoon}, codes(advisories))
	equals(t, uint32(2), advisories[0].Remaining)
	equals(t, 4, advisories[1].DaysLeft)
}

func TestEvaluateGrantsQuietWhenHealthy(t *testing.T) {
	th := DefaultAlertThresholds()
	grants := []model.PackageGrant{
		*grant(1, 10, 8, 2, 30*24*time.Hour), // 6 left, a month to go
	}
	equals(t, 0, len(EvaluateGrants(grants, th, testNow)))
}

func TestEvaluateGrantsBoundaries(t *testing.T) {
	th := DefaultAlertThresholds()

	// Exactly at thresholds: 3 remaining and 5 whole days both fire.
	atEdge := []model.PackageGrant{*grant(1, 10, 8, 5, 5*24*time.Hour)}
	equals(t, []string{AlertLowBalance, AlertExpiringSoon}, codes(EvaluateGrants(atEdge, th, testNow)))

	// Just above: 4 remaining, 6 whole days stays quiet.
	above := []model.PackageGrant{*grant(1, 10, 8, 4, 6*24*time.Hour)}
	equals(t, 0, len(EvaluateGrants(above, th, testNow)))
}

func TestEvaluateGrantsNoActivePackage(t *testing.T) {
	th := DefaultAlertThresholds()

	advisories := EvaluateGrants(nil, th, testNow)
	equals(t, []string{AlertNoActivePackage}, codes(advisories))

	// Expired and exhausted grants do not count as active.
	dead := []model.PackageGrant{
		*grant(1, 10, 8, 0, -24*time.Hour),
		*grant(2, 10, 8, 8, 24*time.Hour),
	}
	equals(t, []string{AlertNoActivePackage}, codes(EvaluateGrants(dead, th, testNow)))
}

func TestEvaluateSlotAlmostFull(t *testing.T) {
	th := DefaultAlertThresholds()

	full := SlotView{ID: 5, ClassName: "Reformer Flow", Status: model.SlotScheduled, MaxCapacity: 10, Confirmed: 8}
	a := EvaluateSlot(full, th)
	assert(t, a != nil, "2 spots left should fire the advisory")
	equals(t, AlertSlotAlmostFull, a.Code)
	equals(t, uint64(5), a.SlotID)

	roomy := SlotView{Status: model.SlotScheduled, MaxCapacity: 10, Confirmed: 7}
	assert(t, EvaluateSlot(roomy, th) == nil, "3 spots left stays quiet")

	cancelled := SlotView{Status: model.SlotCancelled, MaxCapacity: 10, Confirmed: 10}
	assert(t, EvaluateSlot(cancelled, th) == nil, "cancelled slots never alert")
}
