package repository

import (
	"alcyxob/equipment-app/internal/domain" // Import our defined domain models
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound        = RepositoryError("not found")
	ErrUpdateFailed    = RepositoryError("update failed")
	ErrDuplicate       = RepositoryError("duplicate record")
	ErrVersionConflict = RepositoryError("record was modified concurrently")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Update contract shared by every backend: Update writes the whole record only
// if the stored version still equals the record's Version, then bumps Version
// on the passed record. A mismatch returns ErrVersionConflict and writes nothing.

// PersonRepository defines the interface for the people directory.
type PersonRepository interface {
	Create(ctx context.Context, person *domain.Person) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Person, error)
	// FindStaffByName returns every staff member whose name equals name,
	// ignoring case and surrounding whitespace.
	FindStaffByName(ctx context.Context, name string) ([]domain.Person, error)
	Update(ctx context.Context, person *domain.Person) error
}

// LessonRepository defines the interface for the lesson catalog.
type LessonRepository interface {
	Create(ctx context.Context, lesson *domain.Lesson) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Lesson, error)
	GetByName(ctx context.Context, name string) (*domain.Lesson, error)
}

// EquipmentRepository defines the interface for equipment records.
type EquipmentRepository interface {
	Create(ctx context.Context, equipment *domain.Equipment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Equipment, error)
	List(ctx context.Context) ([]domain.Equipment, error)
	Update(ctx context.Context, equipment *domain.Equipment) error
}

// AuditRepository stores immutable audit notes. Notes are never updated or deleted.
type AuditRepository interface {
	Append(ctx context.Context, note *domain.AuditNote) error
	ListByEquipment(ctx context.Context, equipmentID primitive.ObjectID) ([]domain.AuditNote, error) // Newest first
}

// NameKey is the normalized form used for directory name matching.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
