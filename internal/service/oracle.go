package service

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/metrics"
	"alcyxob/equipment-app/internal/repository"
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StaffMatch is the result of resolving a free-text name against the staff
// directory. Person is set only when exactly one staff record matched.
type StaffMatch struct {
	Person  *domain.Person
	Matches int
}

func (m StaffMatch) Resolved() bool { return m.Person != nil }

// StaffDirectory resolves caller-supplied names to zero or one staff record.
type StaffDirectory struct {
	people repository.PersonRepository
}

func NewStaffDirectory(people repository.PersonRepository) *StaffDirectory {
	return &StaffDirectory{people: people}
}

// Resolve matches name case-insensitively and exactly, ignoring surrounding whitespace.
// Students are never returned.
func (d *StaffDirectory) Resolve(ctx context.Context, name string) (StaffMatch, error) {
	if strings.TrimSpace(name) == "" {
		return StaffMatch{}, nil
	}
	staff, err := d.people.FindStaffByName(ctx, name)
	if err != nil {
		return StaffMatch{}, err
	}
	match := StaffMatch{Matches: len(staff)}
	if len(staff) == 1 {
		match.Person = &staff[0]
	}
	return match, nil
}

// CompetencyOracle decides whether a borrower may be trusted with an item by
// joining the item's linked lesson with the borrower's ledger entry.
type CompetencyOracle struct {
	equipmentRepo repository.EquipmentRepository
	lessonRepo    repository.LessonRepository
	directory     *StaffDirectory
	metrics       *metrics.Metrics
}

func NewCompetencyOracle(equipmentRepo repository.EquipmentRepository, lessonRepo repository.LessonRepository, directory *StaffDirectory, m *metrics.Metrics) *CompetencyOracle {
	return &CompetencyOracle{
		equipmentRepo: equipmentRepo,
		lessonRepo:    lessonRepo,
		directory:     directory,
		metrics:       m,
	}
}

// Evaluate loads the equipment and runs the gate for borrowerName.
func (o *CompetencyOracle) Evaluate(ctx context.Context, equipmentID primitive.ObjectID, borrowerName string) (domain.CompetencyResult, error) {
	equipment, err := o.equipmentRepo.GetByID(ctx, equipmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.CompetencyResult{}, ErrEquipmentNotFound
		}
		return domain.CompetencyResult{}, err
	}
	return o.EvaluateFor(ctx, equipment, borrowerName)
}

// EvaluateFor runs the gate against an already loaded equipment record.
// Every applicable reason is reported, not just the first one found.
func (o *CompetencyOracle) EvaluateFor(ctx context.Context, equipment *domain.Equipment, borrowerName string) (domain.CompetencyResult, error) {
	result := domain.CompetencyResult{Reasons: []string{}}

	var lesson *domain.Lesson
	if equipment.LinkedLessonID != nil {
		l, err := o.lessonRepo.GetByID(ctx, *equipment.LinkedLessonID)
		switch {
		case err == nil:
			lesson = l
			result.LessonName = l.Name
		case errors.Is(err, repository.ErrNotFound):
			// A dangling reference is the same as no reference.
		default:
			return domain.CompetencyResult{}, err
		}
	}
	if lesson == nil {
		result.Reasons = append(result.Reasons, domain.ReasonNoLinkedLesson)
	}

	match, err := o.directory.Resolve(ctx, borrowerName)
	if err != nil {
		return domain.CompetencyResult{}, err
	}
	switch {
	case match.Resolved():
		id := match.Person.ID
		result.StaffID = &id
	case match.Matches > 1:
		result.Reasons = append(result.Reasons, domain.ReasonAmbiguousPerson)
	default:
		result.Reasons = append(result.Reasons, domain.ReasonUnknownPerson)
	}

	if len(result.Reasons) > 0 {
		result.Status = domain.CompetencyNoLinkedLessonOrUnknownPerson
		o.metrics.ObserveGate(string(result.Status))
		return result, nil
	}

	entry, ok := match.Person.Progress[lesson.Name]
	switch {
	case !ok:
		result.Status = domain.CompetencyNotCompetent
		result.Reasons = append(result.Reasons, domain.ReasonNoProgressRecord)
	case !entry.Competent:
		result.Status = domain.CompetencyNotCompetent
		result.Reasons = append(result.Reasons, domain.ReasonNotCompetent)
	default:
		result.Status = domain.CompetencyClear
	}
	o.metrics.ObserveGate(string(result.Status))
	return result, nil
}
