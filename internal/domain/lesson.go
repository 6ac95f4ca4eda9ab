// internal/domain/lesson.go
package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lesson is a training module in the catalog. Its name is the key under which
// people's progress is recorded, which makes it the join key for competency.
type Lesson struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Category  string             `bson:"category,omitempty" json:"category,omitempty"` // Grouping only, e.g. "Wood shop"
	Level     string             `bson:"level,omitempty" json:"level,omitempty"`       // Sorting only, e.g. "Intro", "Advanced"
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
