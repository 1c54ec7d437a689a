package model

import "time"

// Grant lifecycle states.  Grants are created ACTIVE by the purchase
// flow.  EXHAUSTED and EXPIRED exist for administrative bookkeeping;
// eligibility checks in the ledger always derive usability from the
// consumed count and expiry date rather than trusting the state column.
const (
	GrantActive    = "ACTIVE"
	GrantExhausted = "EXHAUSTED"
	GrantExpired   = "EXPIRED"
)

// PackageGrant is a member's prepaid allotment of classes: a total, a
// consumed count and an expiry date.  The remaining balance is always
// computed as TotalClasses - ClassesConsumed and is never stored.  The
// purchase flow creates grants; the booking engine only moves
// ClassesConsumed up and down.  This struct corresponds to a row in
// the `package_grants` table.
//
// Fields:
//  ID              – primary key identifier.
//  MemberID        – member who owns the grant.
//  PackageName     – name of the purchased package (for display).
//  TotalClasses    – classes included in the package.
//  ClassesConsumed – classes already spent (0 <= consumed <= total).
//  PricePaid       – price paid in cents, recorded by the purchase flow.
//  StartsAt        – when the grant becomes usable.
//  ExpiresAt       – when the grant stops being usable.
//  Status          – lifecycle state (ACTIVE, EXHAUSTED, EXPIRED).
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type PackageGrant struct {
	ID              uint64    // package_grants.id
	MemberID        uint64    // package_grants.member_id
	PackageName     string    // package_grants.package_name
	TotalClasses    uint32    // package_grants.total_classes
	ClassesConsumed uint32    // package_grants.classes_consumed
	PricePaid       uint32    // package_grants.price_paid_cents
	StartsAt        time.Time // package_grants.starts_at
	ExpiresAt       time.Time // package_grants.expires_at
	Status          string    // package_grants.status
	CreatedAt       time.Time // package_grants.created_at
	UpdatedAt       time.Time // package_grants.updated_at
}

// Remaining returns the number of classes still available on the grant.
func (g *PackageGrant) Remaining() uint32 {
	if g.ClassesConsumed >= g.TotalClasses {
		return 0
	}
	return g.TotalClasses - g.ClassesConsumed
}

// Usable reports whether the grant can fund a new reservation at the
// given instant: ACTIVE, inside its validity window and with balance
// remaining.
func (g *PackageGrant) Usable(asOf time.Time) bool {
	return g.Status == GrantActive &&
		!asOf.Before(g.StartsAt) &&
		asOf.Before(g.ExpiresAt) &&
		g.Remaining() > 0
}
