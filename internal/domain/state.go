package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StateKind names an equipment item's operational state.
type StateKind string

const (
	StateAvailable StateKind = "available"
	StateLockedOut StateKind = "locked_out"
	StateOnLoan    StateKind = "on_loan"
)

// ErrCorruptState is returned when a stored state document cannot be mapped
// onto exactly one operational state.
var ErrCorruptState = errors.New("corrupt equipment state")

// OperationalState is a closed set: Available, LockedOut or OnLoan.
// Only the types in this package implement it, so a lock record and a loan
// record can never be held at the same time.
type OperationalState interface {
	Kind() StateKind
	operationalState()
}

// Available means the item has neither a lock record nor a loan record.
type Available struct{}

// LockedOut carries the lock-out record that put the item out of service.
type LockedOut struct {
	Lock LockRecord
}

// OnLoan carries the loan record of the current custodian.
type OnLoan struct {
	Loan LoanRecord
}

func (Available) Kind() StateKind { return StateAvailable }
func (LockedOut) Kind() StateKind { return StateLockedOut }
func (OnLoan) Kind() StateKind    { return StateOnLoan }

func (Available) operationalState() {}
func (LockedOut) operationalState() {}
func (OnLoan) operationalState()    {}

// LockRecord is created by a lock-out and removed by an unlock.
type LockRecord struct {
	Date        time.Time `bson:"date" json:"date"`
	CompletedBy string    `bson:"completedBy" json:"completedBy"`
	Steps       []string  `bson:"steps" json:"steps"` // Ordered safety steps, never empty
	Reason      string    `bson:"reason,omitempty" json:"reason,omitempty"`
}

// LoanRecord is created by a lend and removed by a return.
type LoanRecord struct {
	LendDate    time.Time           `bson:"lendDate" json:"lendDate"`
	LentTo      string              `bson:"lentTo" json:"lentTo"`                             // Free-text borrower name
	BorrowerID  *primitive.ObjectID `bson:"borrowerId,omitempty" json:"borrowerId,omitempty"` // Optional directory reference
	DueBackDate time.Time           `bson:"dueBackDate" json:"dueBackDate"`
	Notes       string              `bson:"notes,omitempty" json:"notes,omitempty"`
}

// StateDocument is the persisted shape of an OperationalState.
type StateDocument struct {
	Kind StateKind   `bson:"kind" json:"kind"`
	Lock *LockRecord `bson:"lock,omitempty" json:"lock,omitempty"`
	Loan *LoanRecord `bson:"loan,omitempty" json:"loan,omitempty"`
}

// EncodeState flattens a state into its persisted document.
func EncodeState(s OperationalState) StateDocument {
	switch st := s.(type) {
	case LockedOut:
		lock := cloneLock(st.Lock)
		return StateDocument{Kind: StateLockedOut, Lock: &lock}
	case OnLoan:
		loan := st.Loan
		return StateDocument{Kind: StateOnLoan, Loan: &loan}
	default:
		return StateDocument{Kind: StateAvailable}
	}
}

// DecodeState rebuilds a state from its persisted document. An empty kind with
// no records is treated as Available so freshly created items need no state.
func DecodeState(doc StateDocument) (OperationalState, error) {
	if doc.Lock != nil && doc.Loan != nil {
		return nil, fmt.Errorf("%w: both lock and loan records present", ErrCorruptState)
	}
	switch doc.Kind {
	case "", StateAvailable:
		if doc.Lock != nil || doc.Loan != nil {
			return nil, fmt.Errorf("%w: available item carries a record", ErrCorruptState)
		}
		return Available{}, nil
	case StateLockedOut:
		if doc.Lock == nil {
			return nil, fmt.Errorf("%w: locked_out without lock record", ErrCorruptState)
		}
		return LockedOut{Lock: cloneLock(*doc.Lock)}, nil
	case StateOnLoan:
		if doc.Loan == nil {
			return nil, fmt.Errorf("%w: on_loan without loan record", ErrCorruptState)
		}
		return OnLoan{Loan: *doc.Loan}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrCorruptState, doc.Kind)
	}
}

func cloneLock(l LockRecord) LockRecord {
	cp := l
	cp.Steps = append([]string(nil), l.Steps...)
	return cp
}

func cloneLoan(l LoanRecord) LoanRecord {
	cp := l
	if l.BorrowerID != nil {
		id := *l.BorrowerID
		cp.BorrowerID = &id
	}
	return cp
}
