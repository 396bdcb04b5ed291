package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the direction of a balance mutation.
type TransactionKind string

// Supported transaction kinds.
const (
	KindDeposit  TransactionKind = "deposit"
	KindWithdraw TransactionKind = "withdraw"
)

// Valid reports whether k is a known kind.
func (k TransactionKind) Valid() bool {
	return k == KindDeposit || k == KindWithdraw
}

// Transaction is an immutable record of one committed balance mutation.
type Transaction struct {
	ID        int64           `json:"id"`
	AccountID string          `json:"account_id"`
	Kind      TransactionKind `json:"kind"`
	Amount    decimal.Decimal `json:"amount"` // always positive
	CreatedAt time.Time       `json:"created_at"`
}

// AppendTransactionParams is the input data to append a transaction record.
type AppendTransactionParams struct {
	AccountID string
	Kind      TransactionKind
	Amount    decimal.Decimal
}

// Result is the outcome of a successful credit or debit.
type Result struct {
	Account     Account     `json:"account"`
	Transaction Transaction `json:"transaction"`
}

// ParseAmount converts user input into a positive monetary amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}

	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	return amount, nil
}
