// Package repository contains data access logic for the studio's
// scheduling entities.  This file defines repository methods for class
// slots.  A ClassSlot is one scheduled occurrence of a class with a
// finite capacity; slots are created and cancelled by administrators,
// never by the booking engine.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/reformery/studio-booking/internal/model"
)

// SlotRepo manages persistence for class slots.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo constructs a SlotRepo with the given DB handle.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *SlotRepo) DB() *sql.DB { return r.db }

// Create inserts a new slot and assigns the generated ID back to the
// struct.  The caller must provide class_type_id, instructor_id,
// starts_at, ends_at and max_capacity.  Status is implicitly
// SCHEDULED by the DB.
func (r *SlotRepo) Create(ctx context.Context, s *model.ClassSlot) error {
	const q = `INSERT INTO class_slots (class_type_id, instructor_id, starts_at, ends_at, max_capacity, notes)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		s.ClassTypeID, s.InstructorID, s.StartsAt.UTC(), s.EndsAt.UTC(), s.MaxCapacity, s.Notes)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	// Query back the inserted row to obtain default fields.
	const sel = `SELECT id, class_type_id, instructor_id, starts_at, ends_at, max_capacity, status, notes, created_at, updated_at
	             FROM class_slots WHERE id = ?`
	var notes sql.NullString
	err = r.db.QueryRowContext(ctx, sel, s.ID).Scan(
		&s.ID, &s.ClassTypeID, &s.InstructorID, &s.StartsAt, &s.EndsAt,
		&s.MaxCapacity, &s.Status, &notes, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if notes.Valid {
		v := notes.String
		s.Notes = &v
	}
	return nil
}

// GetByID retrieves a slot by its ID.  Returns ErrSlotNotFound when no
// row matches.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (*model.ClassSlot, error) {
	const q = `SELECT id, class_type_id, instructor_id, starts_at, ends_at, max_capacity, status, notes, created_at, updated_at
	           FROM class_slots WHERE id = ?`
	var s model.ClassSlot
	var notes sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.ClassTypeID, &s.InstructorID, &s.StartsAt, &s.EndsAt,
		&s.MaxCapacity, &s.Status, &notes, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	if notes.Valid {
		v := notes.String
		s.Notes = &v
	}
	return &s, nil
}

// SlotDetail joins a slot with its class type and instructor names for
// display.  The calendar projector consumes these rows.
type SlotDetail struct {
	Slot           model.ClassSlot
	ClassName      string
	InstructorName string
}

// ListBetween returns all slots starting in [from, to) with class and
// instructor names, ordered by start time then ID.  Cancelled slots
// are included; the projector filters them so read models stay pure.
func (r *SlotRepo) ListBetween(ctx context.Context, from, to time.Time) ([]SlotDetail, error) {
	const q = `SELECT cs.id, cs.class_type_id, cs.instructor_id, cs.starts_at, cs.ends_at,
	                  cs.max_capacity, cs.status, cs.notes, cs.created_at, cs.updated_at,
	                  ct.name, m.full_name
	           FROM class_slots cs
	           JOIN class_types ct ON ct.id = cs.class_type_id
	           JOIN members m ON m.id = cs.instructor_id
	           WHERE cs.starts_at >= ? AND cs.starts_at < ?
	           ORDER BY cs.starts_at ASC, cs.id ASC`
	rows, err := r.db.QueryContext(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]SlotDetail, 0)
	for rows.Next() {
		var d SlotDetail
		var notes sql.NullString
		if err := rows.Scan(
			&d.Slot.ID, &d.Slot.ClassTypeID, &d.Slot.InstructorID, &d.Slot.StartsAt, &d.Slot.EndsAt,
			&d.Slot.MaxCapacity, &d.Slot.Status, &notes, &d.Slot.CreatedAt, &d.Slot.UpdatedAt,
			&d.ClassName, &d.InstructorName,
		); err != nil {
			return nil, err
		}
		if notes.Valid {
			v := notes.String
			d.Slot.Notes = &v
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// UpdateStatus transitions a slot to the given lifecycle state.  Only
// administrative action or the passage of time drives these
// transitions.  Cancelling an already CANCELLED or COMPLETED slot
// returns ErrConflict.
func (r *SlotRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	const q = `UPDATE class_slots SET status = ? WHERE id = ? AND status = 'SCHEDULED'`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		const check = `SELECT COUNT(*) FROM class_slots WHERE id = ?`
		var exists int
		if err := r.db.QueryRowContext(ctx, check, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrSlotNotFound
		}
		return ErrConflict
	}
	return nil
}
