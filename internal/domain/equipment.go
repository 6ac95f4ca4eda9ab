// internal/domain/equipment.go
package domain

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Equipment is a physical item that can be locked out or lent.
// State is derived from the lock/loan records and is never stored twice.
type Equipment struct {
	ID             primitive.ObjectID
	Name           string
	Type           string
	Location       string
	LinkedLessonID *primitive.ObjectID // Competency prerequisite, at most one
	State          OperationalState
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// equipmentDocument is the stored and wire representation of Equipment.
type equipmentDocument struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name           string              `bson:"name" json:"name"`
	Type           string              `bson:"type,omitempty" json:"type,omitempty"`
	Location       string              `bson:"location,omitempty" json:"location,omitempty"`
	LinkedLessonID *primitive.ObjectID `bson:"linkedLessonId,omitempty" json:"linkedLessonId,omitempty"`
	State          StateDocument       `bson:"state" json:"state"`
	Version        int64               `bson:"version" json:"-"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// CurrentState never returns nil; a zero Equipment is Available.
func (e *Equipment) CurrentState() OperationalState {
	if e.State == nil {
		return Available{}
	}
	return e.State
}

// Clone returns a copy that shares no mutable data with e.
func (e *Equipment) Clone() *Equipment {
	if e == nil {
		return nil
	}
	cp := *e
	if e.LinkedLessonID != nil {
		id := *e.LinkedLessonID
		cp.LinkedLessonID = &id
	}
	switch st := e.State.(type) {
	case LockedOut:
		cp.State = LockedOut{Lock: cloneLock(st.Lock)}
	case OnLoan:
		cp.State = OnLoan{Loan: cloneLoan(st.Loan)}
	}
	return &cp
}

func (e Equipment) document() equipmentDocument {
	return equipmentDocument{
		ID:             e.ID,
		Name:           e.Name,
		Type:           e.Type,
		Location:       e.Location,
		LinkedLessonID: e.LinkedLessonID,
		State:          EncodeState(e.CurrentState()),
		Version:        e.Version,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func (e *Equipment) fromDocument(doc equipmentDocument) error {
	state, err := DecodeState(doc.State)
	if err != nil {
		return err
	}
	*e = Equipment{
		ID:             doc.ID,
		Name:           doc.Name,
		Type:           doc.Type,
		Location:       doc.Location,
		LinkedLessonID: doc.LinkedLessonID,
		State:          state,
		Version:        doc.Version,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
	return nil
}

func (e Equipment) MarshalBSON() ([]byte, error) {
	return bson.Marshal(e.document())
}

func (e *Equipment) UnmarshalBSON(data []byte) error {
	var doc equipmentDocument
	if err := bson.Unmarshal(data, &doc); err != nil {
		return err
	}
	return e.fromDocument(doc)
}

func (e Equipment) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.document())
}

func (e *Equipment) UnmarshalJSON(data []byte) error {
	var doc equipmentDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return e.fromDocument(doc)
}
