package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditAction names the transition an audit note describes.
type AuditAction string

const (
	AuditLockOut      AuditAction = "lock_out"
	AuditUnlock       AuditAction = "unlock"
	AuditLend         AuditAction = "lend"
	AuditLendOverride AuditAction = "lend_override" // Lent after an explicit competency override
	AuditReturn       AuditAction = "return"
)

// AuditNote is an immutable record of one state transition.
// Notes are only ever appended, never edited.
type AuditNote struct {
	ID          string             `bson:"_id" json:"id"`
	EquipmentID primitive.ObjectID `bson:"equipmentId" json:"equipmentId"`
	Action      AuditAction        `bson:"action" json:"action"`
	Actor       string             `bson:"actor,omitempty" json:"actor,omitempty"`       // Who completed the work (completedBy / borrower)
	Operator    string             `bson:"operator,omitempty" json:"operator,omitempty"` // Who submitted the request
	Date        time.Time          `bson:"date" json:"date"`                             // Date of the event as reported
	Steps       []string           `bson:"steps,omitempty" json:"steps,omitempty"`
	Summary     string             `bson:"summary" json:"summary"`
	RecordedAt  time.Time          `bson:"recordedAt" json:"recordedAt"`
}
