// Package ledgerstore defines the storage contract of the ledger and its
// PostgreSQL implementation.
//
// A Store runs a function against an AccountStore and a TransactionLog bound
// to one transaction: either every write made by the function becomes visible
// or none does.
package ledgerstore

import (
	"context"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// AccountStore maps account ids to current balances.
type AccountStore interface {
	Get(ctx context.Context, id string) (domain.Account, error)
	GetForUpdate(ctx context.Context, id string) (domain.Account, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) (domain.Account, error)
}

// TransactionLog is the append-only history of every account.
type TransactionLog interface {
	Append(ctx context.Context, arg domain.AppendTransactionParams) (domain.Transaction, error)
	// List returns the history newest first.
	List(ctx context.Context, accountID string) ([]domain.Transaction, error)
}

// TxOptions configures a store transaction.
type TxOptions struct {
	// ReadOnly transactions see one consistent snapshot and may not write.
	ReadOnly bool
}

// TxFunc is the unit of work executed by Store.ExecTx.
type TxFunc func(accounts AccountStore, log TransactionLog) error

// Store executes units of work atomically.
//
//go:generate mockgen -source store.go -destination store_mock.go -package ledgerstore
type Store interface {
	// ExecTx commits the writes of fn if it returns nil and discards them
	// otherwise. The error of fn is returned unchanged; a failed commit is
	// reported as domain.ErrStorageFailure.
	ExecTx(ctx context.Context, opts TxOptions, fn TxFunc) error
}
