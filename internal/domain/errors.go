package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount indicates a malformed or non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds indicates that the balance does not cover the debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists indicates that an account with the given id is already open.
	ErrAccountExists = errors.New("account already exists")
	// ErrStorageFailure indicates an I/O or commit failure in the underlying store.
	ErrStorageFailure = errors.New("storage failure")
	// ErrLockTimeout indicates that the account lock was not granted within the wait budget.
	ErrLockTimeout = errors.New("lock timeout")
)

// LedgerError describes a failed ledger operation.
//
// It unwraps to one of the sentinel errors above, or to a context error when
// the caller gave up while waiting for the account lock.
type LedgerError struct {
	Op        string
	AccountID string
	Amount    decimal.Decimal
	Err       error
}

func (e *LedgerError) Error() string {
	if e.Amount.IsZero() {
		return fmt.Sprintf("%s %s: %v", e.Op, e.AccountID, e.Err)
	}

	return fmt.Sprintf("%s %s %s: %v", e.Op, e.AccountID, e.Amount, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}
