package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role distinguishes staff from students. Both share the same record shape;
// only staff can be loan custodians.
type Role string

const (
	RoleStaff   Role = "staff"
	RoleStudent Role = "student"
)

// Person represents a member of the workshop directory (staff or student).
// The record itself is owned by the directory; the progress ledger only ever
// mutates the Progress map.
type Person struct {
	ID        primitive.ObjectID       `bson:"_id,omitempty" json:"id"`
	Name      string                   `bson:"name" json:"name"`
	Role      Role                     `bson:"role" json:"role"`
	Progress  map[string]ProgressEntry `bson:"progress,omitempty" json:"progress,omitempty"` // Keyed by lesson name
	Version   int64                    `bson:"version" json:"-"`                             // Optimistic concurrency guard
	CreatedAt time.Time                `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time                `bson:"updatedAt" json:"updatedAt"`
}

func (p *Person) IsStaff() bool {
	return p.Role == RoleStaff
}

func (p *Person) IsStudent() bool {
	return p.Role == RoleStudent
}

// ProgressCopy returns a copy of the progress map that is safe to mutate.
func (p *Person) ProgressCopy() map[string]ProgressEntry {
	out := make(map[string]ProgressEntry, len(p.Progress))
	for lesson, entry := range p.Progress {
		out[lesson] = entry.Clone()
	}
	return out
}

// Clone returns a deep copy of the person.
func (p *Person) Clone() *Person {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Progress != nil {
		cp.Progress = p.ProgressCopy()
	}
	return &cp
}
