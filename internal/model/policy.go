package model

import "time"

// EligibleGrant returns the grant the package ledger will debit for a
// booking at asOf: the usable grant with the earliest expiry date,
// ties broken by lowest ID.  Returns nil when no grant is usable.
// This is the canonical allocation policy; the SQL ledger orders its
// candidate query the same way.
func EligibleGrant(grants []PackageGrant, asOf time.Time) *PackageGrant {
	var pick *PackageGrant
	for i := range grants {
		g := &grants[i]
		if !g.Usable(asOf) {
			continue
		}
		if pick == nil ||
			g.ExpiresAt.Before(pick.ExpiresAt) ||
			(g.ExpiresAt.Equal(pick.ExpiresAt) && g.ID < pick.ID) {
			pick = g
		}
	}
	return pick
}

// Refundable reports whether a cancellation at asOf of a slot starting
// at start happens early enough (strictly more than cutoff before the
// start) to entitle the member to a package credit.  The reservation
// ledger applies this when it cancels.
func Refundable(start, asOf time.Time, cutoff time.Duration) bool {
	return start.Sub(asOf) > cutoff
}
