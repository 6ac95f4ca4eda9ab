package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestDecodeState(t *testing.T) {
	lock := &LockRecord{Date: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), CompletedBy: "Sam", Steps: []string{"isolate power"}}
	loan := &LoanRecord{LentTo: "Jane Doe"}

	tests := []struct {
		name     string
		doc      StateDocument
		wantKind StateKind
		wantErr  bool
	}{
		{"empty document is available", StateDocument{}, StateAvailable, false},
		{"available", StateDocument{Kind: StateAvailable}, StateAvailable, false},
		{"locked out", StateDocument{Kind: StateLockedOut, Lock: lock}, StateLockedOut, false},
		{"on loan", StateDocument{Kind: StateOnLoan, Loan: loan}, StateOnLoan, false},
		{"both records", StateDocument{Kind: StateLockedOut, Lock: lock, Loan: loan}, "", true},
		{"locked out without record", StateDocument{Kind: StateLockedOut}, "", true},
		{"on loan without record", StateDocument{Kind: StateOnLoan}, "", true},
		{"available with record", StateDocument{Kind: StateAvailable, Loan: loan}, "", true},
		{"unknown kind", StateDocument{Kind: "retired"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeState(tt.doc)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrCorruptState)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, got.Kind())
		})
	}
}

func TestEquipment_StateSurvivesStorageCodecs(t *testing.T) {
	lessonID := primitive.NewObjectID()
	eq := Equipment{
		ID:             primitive.NewObjectID(),
		Name:           "Bandsaw",
		LinkedLessonID: &lessonID,
		State: LockedOut{Lock: LockRecord{
			Date:        time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			CompletedBy: "Sam",
			Steps:       []string{"isolate power", "tag breaker"},
			Reason:      "blade guard cracked",
		}},
		Version: 3,
	}

	raw, err := bson.Marshal(eq)
	require.NoError(t, err)
	var fromBSON Equipment
	require.NoError(t, bson.Unmarshal(raw, &fromBSON))
	assert.Equal(t, eq.State, fromBSON.State)
	assert.Equal(t, int64(3), fromBSON.Version)

	data, err := json.Marshal(eq)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"locked_out"`)
	assert.NotContains(t, string(data), `"loan"`)

	var fromJSON Equipment
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, eq.State, fromJSON.State)
}

func TestEquipment_UnmarshalRejectsBothRecords(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":  primitive.NewObjectID(),
		"name": "Lathe",
		"state": bson.M{
			"kind": "on_loan",
			"lock": bson.M{"completedBy": "Sam", "steps": bson.A{"x"}},
			"loan": bson.M{"lentTo": "Jane"},
		},
	})
	require.NoError(t, err)

	var eq Equipment
	require.ErrorIs(t, bson.Unmarshal(raw, &eq), ErrCorruptState)
}

func TestEquipment_ZeroValueIsAvailable(t *testing.T) {
	var eq Equipment
	assert.Equal(t, StateAvailable, eq.CurrentState().Kind())
}

func TestCompetencyResult_MessageComposesReasons(t *testing.T) {
	res := CompetencyResult{
		Status:  CompetencyNoLinkedLessonOrUnknownPerson,
		Reasons: []string{ReasonNoLinkedLesson, ReasonUnknownPerson},
	}
	msg := res.Message()
	assert.Contains(t, msg, "No lesson is linked")
	assert.Contains(t, msg, "not found in the staff directory")
}

func TestEquipment_CloneCopiesRecords(t *testing.T) {
	borrower := primitive.NewObjectID()
	eq := &Equipment{Name: "Wood lathe", State: OnLoan{Loan: LoanRecord{LentTo: "Jane Doe", BorrowerID: &borrower}}}

	cp := eq.Clone()
	loan := cp.State.(OnLoan).Loan
	require.NotNil(t, loan.BorrowerID)
	*loan.BorrowerID = primitive.NewObjectID()
	assert.Equal(t, borrower, *eq.State.(OnLoan).Loan.BorrowerID)

	locked := &Equipment{State: LockedOut{Lock: LockRecord{CompletedBy: "Sam", Steps: []string{"Tag"}}}}
	lockCopy := locked.Clone()
	lockCopy.State.(LockedOut).Lock.Steps[0] = "changed"
	assert.Equal(t, "Tag", locked.State.(LockedOut).Lock.Steps[0])
}
