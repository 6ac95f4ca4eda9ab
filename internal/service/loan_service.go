package service

import (
	"alcyxob/equipment-app/internal/domain"
	"context"
	"errors"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoanWarning explains why a loan was not granted straight away.
type LoanWarning struct {
	Status  domain.CompetencyStatus `json:"status"`
	Reasons []string                `json:"reasons"`
	Message string                  `json:"message"`
}

// LoanDecision is the outcome of a loan request. A warning is a successful
// result: the caller decides whether to confirm with an override.
type LoanDecision struct {
	Granted      bool              `json:"granted"`
	Warning      *LoanWarning      `json:"warning,omitempty"`
	LoanDetails  LoanDetails       `json:"loanDetails"`
	Equipment    *domain.Equipment `json:"equipment,omitempty"`
	AuditNoteID  string            `json:"auditNoteId,omitempty"`
	AuditWarning string            `json:"auditWarning,omitempty"`
}

// LoanService is the only way to put equipment on loan.
type LoanService interface {
	RequestLoan(ctx context.Context, equipmentID primitive.ObjectID, details LoanDetails, operator string) (*LoanDecision, error)
	ConfirmLoanOverride(ctx context.Context, equipmentID primitive.ObjectID, details LoanDetails, operator string) (*LoanDecision, error)
}

type loanService struct {
	equipment EquipmentService
	oracle    *CompetencyOracle
}

// NewLoanService creates a new instance of loanService.
func NewLoanService(equipment EquipmentService, oracle *CompetencyOracle) LoanService {
	return &loanService{equipment: equipment, oracle: oracle}
}

// RequestLoan lends only when the competency gate is clear. Any other gate
// result comes back as a warning with the details untouched and no state change.
func (s *loanService) RequestLoan(ctx context.Context, equipmentID primitive.ObjectID, details LoanDetails, operator string) (*LoanDecision, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}
	equipment, err := s.equipment.GetEquipment(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	if err := CanLend(equipment.CurrentState()); err != nil {
		return nil, err
	}

	gate, err := s.oracle.EvaluateFor(ctx, equipment, details.LentTo)
	if err != nil {
		return nil, err
	}
	if !gate.IsClear() {
		return &LoanDecision{
			Granted: false,
			Warning: &LoanWarning{
				Status:  gate.Status,
				Reasons: gate.Reasons,
				Message: gate.Message(),
			},
			LoanDetails: details,
		}, nil
	}

	// The item may have changed since the read above; lend rechecks under its lock.
	result, err := s.equipment.lend(ctx, equipmentID, details, domain.AuditLend, "", operator)
	if err != nil {
		return nil, err
	}
	return grantedDecision(details, result), nil
}

// ConfirmLoanOverride lends without consulting the gate. The gate is still
// evaluated so the audit note records what was overridden.
func (s *loanService) ConfirmLoanOverride(ctx context.Context, equipmentID primitive.ObjectID, details LoanDetails, operator string) (*LoanDecision, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}

	gateSummary := "competency not evaluated"
	gate, err := s.oracle.Evaluate(ctx, equipmentID, details.LentTo)
	switch {
	case err == nil:
		gateSummary = string(gate.Status)
		if !gate.IsClear() {
			gateSummary += " (" + gate.Message() + ")"
		}
	case errors.Is(err, ErrEquipmentNotFound):
		return nil, err
	default:
		log.Printf("WARN: Competency gate unavailable during override for equipment %s: %v", equipmentID.Hex(), err)
	}

	result, err := s.equipment.lend(ctx, equipmentID, details, domain.AuditLendOverride, gateSummary, operator)
	if err != nil {
		return nil, err
	}
	log.Printf("WARN: Loan override on equipment %s to %q by operator %q, gate: %s", equipmentID.Hex(), details.LentTo, operator, gateSummary)
	return grantedDecision(details, result), nil
}

func grantedDecision(details LoanDetails, result *TransitionResult) *LoanDecision {
	return &LoanDecision{
		Granted:      true,
		LoanDetails:  details,
		Equipment:    result.Equipment,
		AuditNoteID:  result.AuditNoteID,
		AuditWarning: result.AuditWarning,
	}
}
