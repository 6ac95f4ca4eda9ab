package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ProgressEntry is one person's standing in one lesson.
//
// CompletionDate and CompetencyDate record the first time each milestone was
// reached. Older clients (and older stored documents) carry a bare completion
// percentage instead of an entry; both decoders below fold that legacy form
// into {Progress: n, Competent: false} so nothing past the boundary ever sees
// the union.
type ProgressEntry struct {
	Progress       int        `bson:"progress" json:"progress"`
	Competent      bool       `bson:"competent" json:"competent"`
	CompletionDate *time.Time `bson:"completionDate,omitempty" json:"completionDate,omitempty"`
	CompetencyDate *time.Time `bson:"competencyDate,omitempty" json:"competencyDate,omitempty"`
}

// Clone returns a copy that does not share date pointers.
func (e ProgressEntry) Clone() ProgressEntry {
	cp := e
	if e.CompletionDate != nil {
		d := *e.CompletionDate
		cp.CompletionDate = &d
	}
	if e.CompetencyDate != nil {
		d := *e.CompetencyDate
		cp.CompetencyDate = &d
	}
	return cp
}

// LegacyProgress builds the canonical entry for a bare percentage.
func LegacyProgress(n int) ProgressEntry {
	return ProgressEntry{Progress: n}
}

// plainProgressEntry has the same layout but none of the custom decoders.
type plainProgressEntry ProgressEntry

// UnmarshalJSON accepts either a full entry object or a bare number.
func (e *ProgressEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*e = ProgressEntry{}
		return nil
	}
	if trimmed[0] != '{' {
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("progress value must be a number or an object: %w", err)
		}
		percent, err := LegacyPercent(n)
		if err != nil {
			return err
		}
		*e = LegacyProgress(percent)
		return nil
	}
	var plain plainProgressEntry
	if err := json.Unmarshal(trimmed, &plain); err != nil {
		return err
	}
	*e = ProgressEntry(plain)
	return nil
}

// UnmarshalBSONValue accepts either an embedded document or a stored number.
func (e *ProgressEntry) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Int32:
		*e = LegacyProgress(int(raw.Int32()))
	case bsontype.Int64:
		*e = LegacyProgress(int(raw.Int64()))
	case bsontype.Double:
		percent, err := LegacyPercent(raw.Double())
		if err != nil {
			return err
		}
		*e = LegacyProgress(percent)
	case bsontype.Null, bsontype.Undefined:
		*e = ProgressEntry{}
	case bsontype.EmbeddedDocument:
		var plain plainProgressEntry
		if err := bson.Unmarshal(data, &plain); err != nil {
			return err
		}
		*e = ProgressEntry(plain)
	default:
		return fmt.Errorf("cannot decode progress entry from BSON %s", t)
	}
	return nil
}

// LegacyPercent converts a bare progress number. Only whole numbers are
// accepted, matching the int field of the entry form.
func LegacyPercent(n float64) (int, error) {
	if n != math.Trunc(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("progress value %v is not a whole number", n)
	}
	return int(n), nil
}
