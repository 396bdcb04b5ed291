// Package domain provides definitions of ledger entities and errors.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account holds the current balance of a single ledger account.
type Account struct {
	ID             string          `json:"id"`
	Balance        decimal.Decimal `json:"balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	CreatedAt      time.Time       `json:"created_at"`
}

// CreateAccountParams is the input data to open an account.
type CreateAccountParams struct {
	ID             string          `json:"id"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// Statement is the result of an account query.
type Statement struct {
	Account Account `json:"account"`
	// Newest first.
	Transactions []Transaction `json:"transactions"`
}

// AuditReport compares the stored balance with the balance derived from the history.
type AuditReport struct {
	AccountID    string          `json:"account_id"`
	Balance      decimal.Decimal `json:"balance"`
	Expected     decimal.Decimal `json:"expected"`
	Deposits     decimal.Decimal `json:"deposits"`
	Withdrawals  decimal.Decimal `json:"withdrawals"`
	Transactions int             `json:"transactions"`
	Consistent   bool            `json:"consistent"`
}
