package service

import (
	"alcyxob/equipment-app/internal/domain"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LockRequest carries a lock-out or unlock checklist.
type LockRequest struct {
	Date        time.Time `json:"date"`
	CompletedBy string    `json:"completedBy"`
	Steps       []string  `json:"steps"`
	Notes       string    `json:"notes,omitempty"`
}

// Validate checks required fields first, then the checklist.
func (r LockRequest) Validate() error {
	if r.Date.IsZero() {
		return missingField("date")
	}
	if strings.TrimSpace(r.CompletedBy) == "" {
		return missingField("completedBy")
	}
	if len(r.completedSteps()) == 0 {
		return ErrIncompleteChecklist
	}
	return nil
}

// completedSteps drops blank entries and keeps the submitted order.
func (r LockRequest) completedSteps() []string {
	steps := make([]string, 0, len(r.Steps))
	for _, step := range r.Steps {
		if s := strings.TrimSpace(step); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

// LoanDetails is what a borrower request carries. The loan record stores it as submitted.
type LoanDetails struct {
	LendDate    time.Time           `json:"lendDate"`
	LentTo      string              `json:"lentTo"`
	BorrowerID  *primitive.ObjectID `json:"borrowerId,omitempty"`
	DueBackDate time.Time           `json:"dueBackDate"`
	Notes       string              `json:"notes,omitempty"`
}

func (d LoanDetails) Validate() error {
	if d.LendDate.IsZero() {
		return missingField("lendDate")
	}
	if strings.TrimSpace(d.LentTo) == "" {
		return missingField("lentTo")
	}
	if d.DueBackDate.IsZero() {
		return missingField("dueBackDate")
	}
	if d.DueBackDate.Before(d.LendDate) {
		return invalidField("dueBackDate", "is before lendDate")
	}
	return nil
}

func (d LoanDetails) record() domain.LoanRecord {
	rec := domain.LoanRecord{
		LendDate:    d.LendDate,
		LentTo:      strings.TrimSpace(d.LentTo),
		DueBackDate: d.DueBackDate,
		Notes:       d.Notes,
	}
	if d.BorrowerID != nil {
		id := *d.BorrowerID
		rec.BorrowerID = &id
	}
	return rec
}

// ReturnRequest closes a loan. A zero Date means "now".
type ReturnRequest struct {
	Date  time.Time `json:"date,omitempty"`
	Notes string    `json:"notes,omitempty"`
}

// --- Transitions ---
//
// Each function takes the current state and returns the next one without
// touching storage. Input is validated before the source state is checked.

func LockOut(current domain.OperationalState, req LockRequest) (domain.OperationalState, error) {
	if err := req.Validate(); err != nil {
		return current, err
	}
	switch current.(type) {
	case domain.LockedOut:
		return current, ErrAlreadyLocked
	case domain.OnLoan:
		return current, ErrAlreadyOnLoan
	}
	return domain.LockedOut{Lock: domain.LockRecord{
		Date:        req.Date,
		CompletedBy: strings.TrimSpace(req.CompletedBy),
		Steps:       req.completedSteps(),
		Reason:      req.Notes,
	}}, nil
}

func Unlock(current domain.OperationalState, req LockRequest) (domain.OperationalState, error) {
	if err := req.Validate(); err != nil {
		return current, err
	}
	if _, ok := current.(domain.LockedOut); !ok {
		return current, ErrNotLocked
	}
	return domain.Available{}, nil
}

// lendState puts an available item on loan. Only the loan workflow reaches it,
// through equipmentService.lend.
func lendState(current domain.OperationalState, details LoanDetails) (domain.OperationalState, error) {
	if err := details.Validate(); err != nil {
		return current, err
	}
	if err := CanLend(current); err != nil {
		return current, err
	}
	return domain.OnLoan{Loan: details.record()}, nil
}

// CanLend reports the conflict that would stop a lend from current, if any.
func CanLend(current domain.OperationalState) error {
	switch current.(type) {
	case domain.LockedOut:
		return ErrAlreadyLocked
	case domain.OnLoan:
		return ErrAlreadyOnLoan
	}
	return nil
}

func Return(current domain.OperationalState) (domain.OperationalState, error) {
	if _, ok := current.(domain.OnLoan); !ok {
		return current, ErrNotOnLoan
	}
	return domain.Available{}, nil
}

// --- Audit summaries ---

func lockOutSummary(req LockRequest) string {
	s := fmt.Sprintf("Locked out by %s after %d safety step(s)", strings.TrimSpace(req.CompletedBy), len(req.completedSteps()))
	if req.Notes != "" {
		s += ": " + req.Notes
	}
	return s
}

func unlockSummary(lock domain.LockRecord, req LockRequest) string {
	s := fmt.Sprintf("Unlocked by %s after %d safety step(s); lock-out by %s on %s cleared",
		strings.TrimSpace(req.CompletedBy), len(req.completedSteps()), lock.CompletedBy, lock.Date.Format("2006-01-02"))
	if req.Notes != "" {
		s += ": " + req.Notes
	}
	return s
}

func lendSummary(details LoanDetails, gate string) string {
	s := fmt.Sprintf("Lent to %s, due back %s", strings.TrimSpace(details.LentTo), details.DueBackDate.Format("2006-01-02"))
	if gate != "" {
		s += "; competency override: " + gate
	}
	return s
}

func returnSummary(loan domain.LoanRecord, req ReturnRequest) string {
	s := fmt.Sprintf("Returned by %s (lent %s)", loan.LentTo, loan.LendDate.Format("2006-01-02"))
	if req.Notes != "" {
		s += ": " + req.Notes
	}
	return s
}
