package service

import (
	"errors"
	"fmt"
)

// --- Error Definitions ---

// Validation errors. Wrapped with the offending field name.
var (
	ErrMissingRequiredField         = errors.New("missing required field")
	ErrInvalidField                 = errors.New("invalid field")
	ErrIncompleteChecklist          = errors.New("safety checklist has no completed steps")
	ErrCompetencyRequiresCompletion = errors.New("students must complete a lesson before being marked competent")
)

// State-conflict errors. The caller has to change the equipment's state first.
var (
	ErrAlreadyLocked = errors.New("equipment is locked out")
	ErrAlreadyOnLoan = errors.New("equipment is on loan")
	ErrNotLocked     = errors.New("equipment is not locked out")
	ErrNotOnLoan     = errors.New("equipment is not on loan")
)

// Lookup errors.
var (
	ErrEquipmentNotFound = errors.New("equipment not found")
	ErrPersonNotFound    = errors.New("person not found")
	ErrLessonNotFound    = errors.New("lesson not found")
)

// ErrConcurrentUpdate surfaces a lost optimistic-concurrency race; nothing was written.
var ErrConcurrentUpdate = errors.New("record changed while the update was in progress")

// Error codes as they appear on the wire.
const (
	CodeMissingRequiredField         = "MissingRequiredField"
	CodeInvalidField                 = "InvalidField"
	CodeIncompleteChecklist          = "IncompleteChecklist"
	CodeCompetencyRequiresCompletion = "CompetencyRequiresCompletion"
	CodeAlreadyLocked                = "AlreadyLocked"
	CodeAlreadyOnLoan                = "AlreadyOnLoan"
	CodeNotLocked                    = "NotLocked"
	CodeNotOnLoan                    = "NotOnLoan"
	CodeNotFound                     = "NotFound"
	CodeConflict                     = "ConcurrentUpdate"
	CodeInternal                     = "Internal"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrMissingRequiredField, CodeMissingRequiredField},
	{ErrInvalidField, CodeInvalidField},
	{ErrIncompleteChecklist, CodeIncompleteChecklist},
	{ErrCompetencyRequiresCompletion, CodeCompetencyRequiresCompletion},
	{ErrAlreadyLocked, CodeAlreadyLocked},
	{ErrAlreadyOnLoan, CodeAlreadyOnLoan},
	{ErrNotLocked, CodeNotLocked},
	{ErrNotOnLoan, CodeNotOnLoan},
	{ErrEquipmentNotFound, CodeNotFound},
	{ErrPersonNotFound, CodeNotFound},
	{ErrLessonNotFound, CodeNotFound},
	{ErrConcurrentUpdate, CodeConflict},
}

// ErrorCode maps an error returned by this package to its wire code.
func ErrorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return CodeInternal
}

// IsValidation reports whether err was caused by bad input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingRequiredField) ||
		errors.Is(err, ErrInvalidField) ||
		errors.Is(err, ErrIncompleteChecklist) ||
		errors.Is(err, ErrCompetencyRequiresCompletion)
}

// IsStateConflict reports whether err was caused by the equipment's current state.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrAlreadyLocked) ||
		errors.Is(err, ErrAlreadyOnLoan) ||
		errors.Is(err, ErrNotLocked) ||
		errors.Is(err, ErrNotOnLoan)
}

func missingField(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingRequiredField, field)
}

func invalidField(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidField, field, reason)
}
