package service

import (
	"alcyxob/equipment-app/internal/domain"
	"alcyxob/equipment-app/internal/keylock"
	"alcyxob/equipment-app/internal/metrics"
	"alcyxob/equipment-app/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransitionResult is returned by every successful state change.
// AuditWarning is set when the transition stuck but its audit note did not.
type TransitionResult struct {
	Equipment    *domain.Equipment `json:"equipment"`
	AuditNoteID  string            `json:"auditNoteId,omitempty"`
	AuditWarning string            `json:"auditWarning,omitempty"`
}

// EquipmentService owns the equipment state machine. Lending is only
// reachable through LoanService.
type EquipmentService interface {
	GetEquipment(ctx context.Context, equipmentID primitive.ObjectID) (*domain.Equipment, error)
	ListEquipment(ctx context.Context) ([]domain.Equipment, error)
	SetLinkedLesson(ctx context.Context, equipmentID primitive.ObjectID, lessonID *primitive.ObjectID) (*domain.Equipment, error)
	LockOut(ctx context.Context, equipmentID primitive.ObjectID, req LockRequest, operator string) (*TransitionResult, error)
	Unlock(ctx context.Context, equipmentID primitive.ObjectID, req LockRequest, operator string) (*TransitionResult, error)
	Return(ctx context.Context, equipmentID primitive.ObjectID, req ReturnRequest, operator string) (*TransitionResult, error)
	AuditTrail(ctx context.Context, equipmentID primitive.ObjectID) ([]domain.AuditNote, error)

	lend(ctx context.Context, equipmentID primitive.ObjectID, details LoanDetails, action domain.AuditAction, gate string, operator string) (*TransitionResult, error)
}

type equipmentService struct {
	equipmentRepo repository.EquipmentRepository
	lessonRepo    repository.LessonRepository
	auditRepo     repository.AuditRepository
	locks         *keylock.Locker
	metrics       *metrics.Metrics
	nowFn         func() time.Time
}

// NewEquipmentService creates a new instance of equipmentService.
func NewEquipmentService(equipmentRepo repository.EquipmentRepository, lessonRepo repository.LessonRepository, auditRepo repository.AuditRepository, locks *keylock.Locker, m *metrics.Metrics, nowFn func() time.Time) EquipmentService {
	if locks == nil {
		locks = keylock.New()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &equipmentService{
		equipmentRepo: equipmentRepo,
		lessonRepo:    lessonRepo,
		auditRepo:     auditRepo,
		locks:         locks,
		metrics:       m,
		nowFn:         nowFn,
	}
}

func (s *equipmentService) GetEquipment(ctx context.Context, equipmentID primitive.ObjectID) (*domain.Equipment, error) {
	equipment, err := s.equipmentRepo.GetByID(ctx, equipmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrEquipmentNotFound
		}
		return nil, err
	}
	return equipment, nil
}

func (s *equipmentService) ListEquipment(ctx context.Context) ([]domain.Equipment, error) {
	return s.equipmentRepo.List(ctx)
}

// SetLinkedLesson replaces the item's competency prerequisite. A nil lessonID clears it.
func (s *equipmentService) SetLinkedLesson(ctx context.Context, equipmentID primitive.ObjectID, lessonID *primitive.ObjectID) (*domain.Equipment, error) {
	unlock := s.locks.Lock(equipmentKey(equipmentID))
	defer unlock()

	equipment, err := s.GetEquipment(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	if lessonID != nil {
		if _, err := s.lessonRepo.GetByID(ctx, *lessonID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrLessonNotFound
			}
			return nil, err
		}
		id := *lessonID
		equipment.LinkedLessonID = &id
	} else {
		equipment.LinkedLessonID = nil
	}
	if err := s.save(ctx, equipment); err != nil {
		return nil, err
	}
	return equipment, nil
}

func (s *equipmentService) LockOut(ctx context.Context, equipmentID primitive.ObjectID, req LockRequest, operator string) (*TransitionResult, error) {
	return s.transition(ctx, equipmentID, domain.AuditLockOut, operator, func(equipment *domain.Equipment) (domain.OperationalState, domain.AuditNote, error) {
		next, err := LockOut(equipment.CurrentState(), req)
		if err != nil {
			return nil, domain.AuditNote{}, err
		}
		return next, domain.AuditNote{
			Actor:   req.CompletedBy,
			Date:    req.Date,
			Steps:   req.completedSteps(),
			Summary: lockOutSummary(req),
		}, nil
	})
}

func (s *equipmentService) Unlock(ctx context.Context, equipmentID primitive.ObjectID, req LockRequest, operator string) (*TransitionResult, error) {
	return s.transition(ctx, equipmentID, domain.AuditUnlock, operator, func(equipment *domain.Equipment) (domain.OperationalState, domain.AuditNote, error) {
		current := equipment.CurrentState()
		next, err := Unlock(current, req)
		if err != nil {
			return nil, domain.AuditNote{}, err
		}
		lock := current.(domain.LockedOut).Lock
		return next, domain.AuditNote{
			Actor:   req.CompletedBy,
			Date:    req.Date,
			Steps:   req.completedSteps(),
			Summary: unlockSummary(lock, req),
		}, nil
	})
}

func (s *equipmentService) Return(ctx context.Context, equipmentID primitive.ObjectID, req ReturnRequest, operator string) (*TransitionResult, error) {
	return s.transition(ctx, equipmentID, domain.AuditReturn, operator, func(equipment *domain.Equipment) (domain.OperationalState, domain.AuditNote, error) {
		current := equipment.CurrentState()
		next, err := Return(current)
		if err != nil {
			return nil, domain.AuditNote{}, err
		}
		loan := current.(domain.OnLoan).Loan
		date := req.Date
		if date.IsZero() {
			date = s.nowFn().UTC()
		}
		return next, domain.AuditNote{
			Actor:   loan.LentTo,
			Date:    date,
			Summary: returnSummary(loan, req),
		}, nil
	})
}

func (s *equipmentService) lend(ctx context.Context, equipmentID primitive.ObjectID, details LoanDetails, action domain.AuditAction, gate string, operator string) (*TransitionResult, error) {
	return s.transition(ctx, equipmentID, action, operator, func(equipment *domain.Equipment) (domain.OperationalState, domain.AuditNote, error) {
		next, err := lendState(equipment.CurrentState(), details)
		if err != nil {
			return nil, domain.AuditNote{}, err
		}
		return next, domain.AuditNote{
			Actor:   details.LentTo,
			Date:    details.LendDate,
			Summary: lendSummary(details, gate),
		}, nil
	})
}

func (s *equipmentService) AuditTrail(ctx context.Context, equipmentID primitive.ObjectID) ([]domain.AuditNote, error) {
	if _, err := s.GetEquipment(ctx, equipmentID); err != nil {
		return nil, err
	}
	return s.auditRepo.ListByEquipment(ctx, equipmentID)
}

// transition runs one state change as a read-modify-write under the item's
// key lock, then appends the audit note. A rejected or failed write leaves the
// stored record untouched.
func (s *equipmentService) transition(ctx context.Context, equipmentID primitive.ObjectID, action domain.AuditAction, operator string, apply func(*domain.Equipment) (domain.OperationalState, domain.AuditNote, error)) (*TransitionResult, error) {
	unlock := s.locks.Lock(equipmentKey(equipmentID))
	defer unlock()

	equipment, err := s.GetEquipment(ctx, equipmentID)
	if err != nil {
		s.metrics.ObserveTransition(string(action), metrics.OutcomeError)
		return nil, err
	}
	next, note, err := apply(equipment)
	if err != nil {
		s.metrics.ObserveTransition(string(action), metrics.OutcomeRejected)
		return nil, err
	}
	equipment.State = next
	if err := s.save(ctx, equipment); err != nil {
		s.metrics.ObserveTransition(string(action), metrics.OutcomeError)
		return nil, err
	}
	s.metrics.ObserveTransition(string(action), metrics.OutcomeSuccess)

	note.ID = uuid.NewString()
	note.EquipmentID = equipmentID
	note.Action = action
	note.Operator = operator
	note.RecordedAt = s.nowFn().UTC()

	result := &TransitionResult{Equipment: equipment, AuditNoteID: note.ID}
	if err := s.auditRepo.Append(ctx, &note); err != nil {
		log.Printf("WARN: Audit note for %s on equipment %s was not recorded: %v", action, equipmentID.Hex(), err)
		s.metrics.ObserveAuditFailure()
		result.AuditNoteID = ""
		result.AuditWarning = fmt.Sprintf("transition applied but audit note was not recorded: %v", err)
	}
	return result, nil
}

func (s *equipmentService) save(ctx context.Context, equipment *domain.Equipment) error {
	if err := s.equipmentRepo.Update(ctx, equipment); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrEquipmentNotFound
		case errors.Is(err, repository.ErrVersionConflict):
			return ErrConcurrentUpdate
		}
		return fmt.Errorf("saving equipment: %w", err)
	}
	return nil
}

func equipmentKey(id primitive.ObjectID) string {
	return "equipment:" + id.Hex()
}
