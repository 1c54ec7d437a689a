package service

import (
	"fmt"
	"time"

	"github.com/reformery/studio-booking/internal/model"
)

// Advisory codes surfaced to the UI as banners.  Advisories are
// derived from ledger snapshots on every read; nothing is stored.
const (
	AlertLowBalance      = "LOW_BALANCE"
	AlertExpiringSoon    = "EXPIRING_SOON"
	AlertNoActivePackage = "NO_ACTIVE_PACKAGE"
	AlertSlotAlmostFull  = "SLOT_ALMOST_FULL"
)

// Advisory is one user-facing alert derived from a snapshot.
type Advisory struct {
	Code      string `json:"code"`
	GrantID   uint64 `json:"grant_id,omitempty"`
	SlotID    uint64 `json:"slot_id,omitempty"`
	Remaining uint32 `json:"remaining,omitempty"`
	DaysLeft  int    `json:"days_left,omitempty"`
	Message   string `json:"message"`
}

// AlertThresholds configures when advisories fire.
type AlertThresholds struct {
	LowBalance uint32 // remaining classes at or below this raise LOW_BALANCE
	ExpiryDays int    // days until expiry at or below this raise EXPIRING_SOON
	SlotSpots  uint32 // free spots at or below this raise SLOT_ALMOST_FULL
}

// DefaultAlertThresholds mirrors the studio's app configuration:
// 3 remaining classes, 5 days to expiry, 2 free spots.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{LowBalance: 3, ExpiryDays: 5, SlotSpots: 2}
}

// EvaluateGrants derives package advisories from a member's grants at
// the given instant.  Pure and read-only: safe to recompute on every
// request.
func EvaluateGrants(grants []model.PackageGrant, th AlertThresholds, asOf time.Time) []Advisory {
	advisories := make([]Advisory, 0)
	anyUsable := false
	for i := range grants {
		g := &grants[i]
		if !g.Usable(asOf) {
			continue
		}
		anyUsable = true
		if remaining := g.Remaining(); remaining <= th.LowBalance {
			advisories = append(advisories, Advisory{
				Code:      AlertLowBalance,
				GrantID:   g.ID,
				Remaining: remaining,
				Message:   fmt.Sprintf("only %d classes left on %s", remaining, g.PackageName),
			})
		}
		if days := daysUntil(asOf, g.ExpiresAt); days <= th.ExpiryDays {
			advisories = append(advisories, Advisory{
				Code:     AlertExpiringSoon,
				GrantID:  g.ID,
				DaysLeft: days,
				Message:  fmt.Sprintf("%s expires in %d days", g.PackageName, days),
			})
		}
	}
	if !anyUsable {
		advisories = append(advisories, Advisory{
			Code:    AlertNoActivePackage,
			Message: "no active package; purchase one to book classes",
		})
	}
	return advisories
}

// EvaluateSlot derives the near-capacity advisory for a slot view, or
// nil when spots remain above the threshold.
func EvaluateSlot(v SlotView, th AlertThresholds) *Advisory {
	if v.Status != model.SlotScheduled {
		return nil
	}
	left := v.SpotsLeft()
	if left > th.SlotSpots {
		return nil
	}
	return &Advisory{
		Code:    AlertSlotAlmostFull,
		SlotID:  v.ID,
		Message: fmt.Sprintf("%s is almost full: %d spots left", v.ClassName, left),
	}
}

// daysUntil returns whole days from asOf to deadline, rounding down.
// A deadline already passed yields a negative count.
func daysUntil(asOf, deadline time.Time) int {
	return int(deadline.Sub(asOf) / (24 * time.Hour))
}
