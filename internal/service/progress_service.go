package service

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/metrics"
	"context"
	"fmt"
	"log"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgressService is the caller-facing side of the ledger. It adds the
// per-role rules the ledger leaves out.
type ProgressService interface {
	ApplyProgressUpdate(ctx context.Context, personID primitive.ObjectID, updates map[string]domain.ProgressEntry) (map[string]domain.ProgressEntry, error)
	ResetProgress(ctx context.Context, personID primitive.ObjectID, lessons []string) (map[string]domain.ProgressEntry, error)
	MarkCompetent(ctx context.Context, personIDs []primitive.ObjectID, lessons []string) (map[primitive.ObjectID]map[string]domain.ProgressEntry, error)
	GetProgress(ctx context.Context, personID primitive.ObjectID) (map[string]domain.ProgressEntry, error)
}

// ProgressPolicy holds the role rules applied on top of the ledger.
type ProgressPolicy struct {
	// StudentRequiresCompletion rejects competent=true below 100% for students.
	StudentRequiresCompletion bool
}

type progressService struct {
	ledger  *ProgressLedger
	policy  ProgressPolicy
	metrics *metrics.Metrics
}

// NewProgressService creates a new instance of progressService.
func NewProgressService(ledger *ProgressLedger, policy ProgressPolicy, m *metrics.Metrics) ProgressService {
	return &progressService{ledger: ledger, policy: policy, metrics: m}
}

func (s *progressService) guards() []UpdateGuard {
	if !s.policy.StudentRequiresCompletion {
		return nil
	}
	return []UpdateGuard{StudentCompletionGuard}
}

// StudentCompletionGuard refuses competency for a student who has not finished the lesson.
func StudentCompletionGuard(person *domain.Person, lesson string, next domain.ProgressEntry) error {
	if person.IsStudent() && next.Competent && next.Progress < 100 {
		return fmt.Errorf("%w: %q is at %d%%", ErrCompetencyRequiresCompletion, lesson, next.Progress)
	}
	return nil
}

func (s *progressService) ApplyProgressUpdate(ctx context.Context, personID primitive.ObjectID, updates map[string]domain.ProgressEntry) (map[string]domain.ProgressEntry, error) {
	progress, err := s.ledger.ApplyUpdate(ctx, personID, updates, s.guards()...)
	s.observe("update", err)
	return progress, err
}

func (s *progressService) ResetProgress(ctx context.Context, personID primitive.ObjectID, lessons []string) (map[string]domain.ProgressEntry, error) {
	progress, err := s.ledger.Reset(ctx, personID, lessons)
	s.observe("reset", err)
	if err == nil {
		log.Printf("INFO: Progress reset for person %s, lessons %v", personID.Hex(), lessons)
	}
	return progress, err
}

// MarkCompetent grants competency for every lesson to every person. Students
// are raised to 100% first when the completion rule is on. Every person is
// resolved and checked before the first write, so a missing person or a
// rejected entry changes nothing. A store failure while writing stops the
// batch; the people already written are returned with the error.
func (s *progressService) MarkCompetent(ctx context.Context, personIDs []primitive.ObjectID, lessons []string) (map[primitive.ObjectID]map[string]domain.ProgressEntry, error) {
	if len(personIDs) == 0 {
		return nil, missingField("personIds")
	}
	if len(lessons) == 0 {
		return nil, missingField("lessons")
	}
	build := func(person *domain.Person) (map[string]domain.ProgressEntry, error) {
		updates := make(map[string]domain.ProgressEntry, len(lessons))
		for _, lesson := range lessons {
			name := strings.TrimSpace(lesson)
			entry := person.Progress[name].Clone()
			entry.Competent = true
			if person.IsStudent() && s.policy.StudentRequiresCompletion {
				entry.Progress = 100
			}
			updates[name] = entry
		}
		return updates, nil
	}

	for _, id := range personIDs {
		if err := s.ledger.Check(ctx, id, build, s.guards()...); err != nil {
			s.observe("mark_competent", err)
			return nil, fmt.Errorf("person %s: %w", id.Hex(), err)
		}
	}

	results := make(map[primitive.ObjectID]map[string]domain.ProgressEntry, len(personIDs))
	for _, id := range personIDs {
		progress, err := s.ledger.ApplyWith(ctx, id, build, s.guards()...)
		s.observe("mark_competent", err)
		if err != nil {
			return results, fmt.Errorf("person %s: %w", id.Hex(), err)
		}
		results[id] = progress
	}
	return results, nil
}

func (s *progressService) GetProgress(ctx context.Context, personID primitive.ObjectID) (map[string]domain.ProgressEntry, error) {
	return s.ledger.Get(ctx, personID)
}

func (s *progressService) observe(operation string, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveProgress(operation, metrics.OutcomeSuccess)
	case IsValidation(err):
		s.metrics.ObserveProgress(operation, metrics.OutcomeRejected)
	default:
		s.metrics.ObserveProgress(operation, metrics.OutcomeError)
	}
}
