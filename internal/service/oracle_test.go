package service

import (
	"alcyxob/equipment-app/internal/domain"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCompetencyOracle_Evaluate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	lathe := f.addLesson(t, "Lathe Basics")
	linked := f.addEquipment(t, "Wood lathe", &lathe)
	unlinked := f.addEquipment(t, "Hand drill", nil)
	dangling := primitive.NewObjectID()
	broken := f.addEquipment(t, "Old bandsaw", &dangling)

	janeID := f.addPerson(t, "Jane Doe", domain.RoleStaff, nil)
	f.addPerson(t, "Ana Competent", domain.RoleStaff, map[string]domain.ProgressEntry{
		"Lathe Basics": {Progress: 40, Competent: true},
	})
	f.addPerson(t, "Ned Learning", domain.RoleStaff, map[string]domain.ProgressEntry{
		"Lathe Basics": {Progress: 100},
	})
	f.addPerson(t, "Stu Dent", domain.RoleStudent, map[string]domain.ProgressEntry{
		"Lathe Basics": {Progress: 100, Competent: true},
	})
	f.addPerson(t, "Chris Twin", domain.RoleStaff, nil)
	f.addPerson(t, "chris twin", domain.RoleStaff, nil)

	tests := []struct {
		name        string
		equipment   primitive.ObjectID
		borrower    string
		wantStatus  domain.CompetencyStatus
		wantReasons []string
	}{
		{"competent staff", linked, "Ana Competent", domain.CompetencyClear, []string{}},
		{"match ignores case and spacing", linked, "  ana COMPETENT ", domain.CompetencyClear, []string{}},
		{"resolved person without entry", linked, "Jane Doe", domain.CompetencyNotCompetent, []string{domain.ReasonNoProgressRecord}},
		{"complete but not competent", linked, "Ned Learning", domain.CompetencyNotCompetent, []string{domain.ReasonNotCompetent}},
		{"unknown person", linked, "Nobody", domain.CompetencyNoLinkedLessonOrUnknownPerson, []string{domain.ReasonUnknownPerson}},
		{"students are not in the staff directory", linked, "Stu Dent", domain.CompetencyNoLinkedLessonOrUnknownPerson, []string{domain.ReasonUnknownPerson}},
		{"ambiguous name", linked, "Chris Twin", domain.CompetencyNoLinkedLessonOrUnknownPerson, []string{domain.ReasonAmbiguousPerson}},
		{"no linked lesson", unlinked, "Ana Competent", domain.CompetencyNoLinkedLessonOrUnknownPerson, []string{domain.ReasonNoLinkedLesson}},
		{"both reasons", unlinked, "Nobody", domain.CompetencyNoLinkedLessonOrUnknownPerson, []string{domain.ReasonNoLinkedLesson, domain.ReasonUnknownPerson}},
		{"dangling lesson reference", broken, "Ana Competent", domain.CompetencyNoLinkedLessonOrUnknownPerson, []string{domain.ReasonNoLinkedLesson}},
		{"empty name", linked, "", domain.CompetencyNoLinkedLessonOrUnknownPerson, []string{domain.ReasonUnknownPerson}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.oracle.Evaluate(ctx, tt.equipment, tt.borrower)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, tt.wantReasons, result.Reasons)
		})
	}

	result, err := f.oracle.Evaluate(ctx, linked, "Jane Doe")
	require.NoError(t, err)
	require.NotNil(t, result.StaffID)
	assert.Equal(t, janeID, *result.StaffID)
	assert.Equal(t, "Lathe Basics", result.LessonName)
}

func TestCompetencyOracle_UnknownEquipment(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.oracle.Evaluate(context.Background(), primitive.NewObjectID(), "Jane Doe")
	assert.ErrorIs(t, err, ErrEquipmentNotFound)
}

func TestCompetencyOracle_BothReasonsInMessage(t *testing.T) {
	f := newFixture(t, nil)
	id := f.addEquipment(t, "Hand drill", nil)

	result, err := f.oracle.Evaluate(context.Background(), id, "Nobody")
	require.NoError(t, err)
	msg := result.Message()
	assert.Contains(t, msg, "No lesson is linked")
	assert.Contains(t, msg, "not found in the staff directory")
}
