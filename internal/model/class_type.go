package model

import "time"

// ClassType describes one kind of class offered by the studio, such as
// Reformer or Top Barre.  Slots on the weekly schedule reference a
// class type for its name, default capacity and duration.  This struct
// corresponds to a row in the `class_types` table.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – unique class name.
//  Description     – optional marketing description.
//  DurationMinutes – default length of a session in minutes.
//  MaxCapacity     – default capacity used when scheduling a slot.
//  Category        – optional grouping (group, private, semiprivate).
//  Intensity       – optional intensity level (low, medium, high).
//  IsActive        – whether the class can still be scheduled.
//  CreatedAt       – timestamp when the class was created.
//  UpdatedAt       – timestamp of last update.
type ClassType struct {
	ID              uint64    // class_types.id
	Name            string    // class_types.name
	Description     *string   // class_types.description (nullable)
	DurationMinutes uint32    // class_types.duration_minutes
	MaxCapacity     uint32    // class_types.max_capacity
	Category        *string   // class_types.category (nullable)
	Intensity       *string   // class_types.intensity (nullable)
	IsActive        bool      // class_types.is_active
	CreatedAt       time.Time // class_types.created_at
	UpdatedAt       time.Time // class_types.updated_at
}
