package domain

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CompetencyStatus is the outcome of the loan competency gate.
type CompetencyStatus string

const (
	CompetencyClear                         CompetencyStatus = "Clear"
	CompetencyNoLinkedLessonOrUnknownPerson CompetencyStatus = "NoLinkedLessonOrUnknownPerson"
	CompetencyNotCompetent                  CompetencyStatus = "NotCompetent"
)

// Reasons reported alongside a non-clear status. Several may apply at once.
const (
	ReasonNoLinkedLesson   = "no linked lesson"
	ReasonUnknownPerson    = "unknown person"
	ReasonAmbiguousPerson  = "ambiguous person"
	ReasonNoProgressRecord = "no progress record"
	ReasonNotCompetent     = "not competent"
)

var reasonMessages = map[string]string{
	ReasonNoLinkedLesson:   "no lesson is linked to this equipment",
	ReasonUnknownPerson:    "the borrower was not found in the staff directory",
	ReasonAmbiguousPerson:  "the borrower name matches more than one staff member",
	ReasonNoProgressRecord: "the borrower has no progress recorded for the linked lesson",
	ReasonNotCompetent:     "the borrower is not marked competent for the linked lesson",
}

// CompetencyResult is the answer to "may this person be trusted with this item".
type CompetencyResult struct {
	Status     CompetencyStatus    `json:"status"`
	Reasons    []string            `json:"reasons"`
	StaffID    *primitive.ObjectID `json:"staffId,omitempty"`
	LessonName string              `json:"lessonName,omitempty"`
}

func (r CompetencyResult) IsClear() bool {
	return r.Status == CompetencyClear
}

// Message composes every reason into one sentence for operators.
func (r CompetencyResult) Message() string {
	if r.IsClear() {
		return "borrower is competent for the linked lesson"
	}
	parts := make([]string, 0, len(r.Reasons))
	for _, reason := range r.Reasons {
		if msg, ok := reasonMessages[reason]; ok {
			parts = append(parts, msg)
			continue
		}
		parts = append(parts, reason)
	}
	if len(parts) == 0 {
		return string(r.Status)
	}
	msg := strings.Join(parts, "; ")
	return strings.ToUpper(msg[:1]) + msg[1:]
}
