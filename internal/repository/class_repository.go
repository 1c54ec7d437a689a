package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/reformery/studio-booking/internal/model"
)

// ErrClassNameExists indicates a class type with the same name already
// exists.  Class names are unique across the catalog.
var ErrClassNameExists = errors.New("class name already exists")

// ErrClassNotFound indicates that a class type was not located in the DB.
var ErrClassNotFound = errors.New("class not found")

// ClassRepo manages the class catalog (Reformer, Top Barre and
// friends).  The catalog is maintained by administrators; the booking
// engine only reads it.
type ClassRepo struct {
	db *sql.DB
}

// NewClassRepo constructs a ClassRepo with the given DB handle.
func NewClassRepo(db *sql.DB) *ClassRepo { return &ClassRepo{db: db} }

// Create inserts a class type and populates the generated ID.
func (r *ClassRepo) Create(ctx context.Context, ct *model.ClassType) error {
	const q = `INSERT INTO class_types (name, description, duration_minutes, max_capacity, category, intensity)
	           VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		ct.Name, ct.Description, ct.DurationMinutes, ct.MaxCapacity, ct.Category, ct.Intensity)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrClassNameExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ct.ID = uint64(id)
	ct.IsActive = true
	return nil
}

// GetByID retrieves a class type.  Returns ErrClassNotFound when no
// row matches.
func (r *ClassRepo) GetByID(ctx context.Context, id uint64) (*model.ClassType, error) {
	const q = `SELECT id, name, description, duration_minutes, max_capacity, category, intensity, is_active, created_at, updated_at
	           FROM class_types WHERE id = ?`
	var ct model.ClassType
	var desc, cat, intensity sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&ct.ID, &ct.Name, &desc, &ct.DurationMinutes, &ct.MaxCapacity,
		&cat, &intensity, &ct.IsActive, &ct.CreatedAt, &ct.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrClassNotFound
		}
		return nil, err
	}
	if desc.Valid {
		v := desc.String
		ct.Description = &v
	}
	if cat.Valid {
		v := cat.String
		ct.Category = &v
	}
	if intensity.Valid {
		v := intensity.String
		ct.Intensity = &v
	}
	return &ct, nil
}

// ListActive returns every active class type ordered by name, for the
// public catalog endpoint.
func (r *ClassRepo) ListActive(ctx context.Context) ([]model.ClassType, error) {
	const q = `SELECT id, name, description, duration_minutes, max_capacity, category, intensity, is_active, created_at, updated_at
	           FROM class_types WHERE is_active = 1 ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	classes := make([]model.ClassType, 0)
	for rows.Next() {
		var ct model.ClassType
		var desc, cat, intensity sql.NullString
		if err := rows.Scan(
			&ct.ID, &ct.Name, &desc, &ct.DurationMinutes, &ct.MaxCapacity,
			&cat, &intensity, &ct.IsActive, &ct.CreatedAt, &ct.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if desc.Valid {
			v := desc.String
			ct.Description = &v
		}
		if cat.Valid {
			v := cat.String
			ct.Category = &v
		}
		if intensity.Valid {
			v := intensity.String
			ct.Intensity = &v
		}
		classes = append(classes, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return classes, nil
}
