// Package errs holds the error taxonomy shared by the ledger, the seeder and the stores.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrDuplicateLanguage  = errors.New("duplicate language")
	ErrOptionNotFound     = errors.New("option not found")
	ErrTransactionAborted = errors.New("transaction aborted")
)

// ValidationError reports a malformed, over-length or disallowed name or parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DuplicateLanguageError carries up to five existing names similar to the rejected one.
type DuplicateLanguageError struct {
	Name        string
	Existing    string
	Suggestions []string
}

func (e *DuplicateLanguageError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("language %q already exists as %q", e.Name, e.Existing)
	}
	return fmt.Sprintf("language %q already exists as %q (similar: %s)",
		e.Name, e.Existing, strings.Join(e.Suggestions, ", "))
}

func (e *DuplicateLanguageError) Is(target error) bool {
	return target == ErrDuplicateLanguage
}

// TransactionAbortedError wraps a storage failure in the middle of a multi-step operation.
// Nothing from the aborted unit is visible afterwards.
type TransactionAbortedError struct {
	Op  string
	Err error
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("%s: transaction aborted: %v", e.Op, e.Err)
}

func (e *TransactionAbortedError) Unwrap() error {
	return e.Err
}

func (e *TransactionAbortedError) Is(target error) bool {
	return target == ErrTransactionAborted
}

// Aborted classifies err coming out of a transaction. Domain errors pass through
// untouched, everything else becomes a TransactionAbortedError.
func Aborted(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOptionNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateLanguage) || errors.Is(err, ErrTransactionAborted) {
		return err
	}
	return &TransactionAbortedError{Op: op, Err: err}
}
