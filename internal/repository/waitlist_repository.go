package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/reformery/studio-booking/internal/model"
)

// WaitlistRepo provides data access to the waitlist table.  Members
// queue for full slots in positional order; when a cancellation frees
// a spot, the head of the queue is notified.  Joining the waitlist
// never touches the package ledger.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the provided database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// Join appends the member to the slot's waitlist and returns the
// created entry with its 1-based position.  The position is computed
// and the row inserted in one transaction so two concurrent joins
// cannot claim the same position.  Returns ErrAlreadyWaitlisted when a
// WAITING entry already exists for the (member, slot) pair.
func (r *WaitlistRepo) Join(ctx context.Context, memberID, slotID uint64) (*model.WaitlistEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	// Lock the slot row so position computation serializes with other
	// joins for the same slot.
	const slotQ = `SELECT id FROM class_slots WHERE id = ? FOR UPDATE`
	var sid uint64
	if err := tx.QueryRowContext(ctx, slotQ, slotID).Scan(&sid); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	const dupQ = `SELECT COUNT(*) FROM waitlist WHERE member_id = ? AND slot_id = ? AND status = 'WAITING'`
	var dup int
	if err := tx.QueryRowContext(ctx, dupQ, memberID, slotID).Scan(&dup); err != nil {
		return nil, err
	}
	if dup > 0 {
		return nil, ErrAlreadyWaitlisted
	}
	const posQ = `SELECT COALESCE(MAX(position), 0) + 1 FROM waitlist WHERE slot_id = ? AND status = 'WAITING'`
	var position uint32
	if err := tx.QueryRowContext(ctx, posQ, slotID).Scan(&position); err != nil {
		return nil, err
	}
	const ins = `INSERT INTO waitlist (member_id, slot_id, position, status) VALUES (?, ?, ?, 'WAITING')`
	res, err := tx.ExecContext(ctx, ins, memberID, slotID, position)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &model.WaitlistEntry{
		ID:       uint64(id),
		MemberID: memberID,
		SlotID:   slotID,
		Position: position,
		Status:   model.WaitlistWaiting,
	}, nil
}

// NextWaiting returns the WAITING entry with the lowest position for a
// slot, or sql.ErrNoRows when the queue is empty.
func (r *WaitlistRepo) NextWaiting(ctx context.Context, slotID uint64) (*model.WaitlistEntry, error) {
	const q = `SELECT id, member_id, slot_id, position, status, notified_at, created_at, updated_at
	           FROM waitlist
	           WHERE slot_id = ? AND status = 'WAITING'
	           ORDER BY position ASC
	           LIMIT 1`
	var e model.WaitlistEntry
	var notifiedAt sql.NullTime
	err := r.db.QueryRowContext(ctx, q, slotID).Scan(
		&e.ID, &e.MemberID, &e.SlotID, &e.Position, &e.Status,
		&notifiedAt, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notifiedAt.Valid {
		t := notifiedAt.Time
		e.NotifiedAt = &t
	}
	return &e, nil
}

// MarkNotified records that the member was told a spot opened up.
func (r *WaitlistRepo) MarkNotified(ctx context.Context, entryID uint64, at time.Time) error {
	const q = `UPDATE waitlist SET status = 'NOTIFIED', notified_at = ? WHERE id = ? AND status = 'WAITING'`
	_, err := r.db.ExecContext(ctx, q, at.UTC(), entryID)
	return err
}

// Leave cancels the member's WAITING entry for a slot.  Positions of
// later entries are left untouched; ordering by position stays
// correct because gaps do not change relative order.
func (r *WaitlistRepo) Leave(ctx context.Context, memberID, slotID uint64) error {
	const q = `UPDATE waitlist SET status = 'CANCELLED' WHERE member_id = ? AND slot_id = ? AND status IN ('WAITING','NOTIFIED')`
	_, err := r.db.ExecContext(ctx, q, memberID, slotID)
	return err
}
