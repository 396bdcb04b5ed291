// Package memstore is an in-memory ledger store used as test infrastructure
// and for embedding the ledger in a single process; the ledger command always
// runs on PostgreSQL.
//
// A write transaction holds the store's write lock from begin to commit and
// stages its writes, applying them only when it commits, so readers never
// observe a balance without its transaction record and every record is stamped
// inside the commit's critical section. Fault hooks let tests fail any step of
// a unit of work.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/ledgerstore"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Faults are consulted before the matching operation. A hook returning a
// non-nil error fails that operation with domain.ErrStorageFailure.
type Faults struct {
	Get           func(accountID string) error
	UpdateBalance func(accountID string) error
	Append        func(arg domain.AppendTransactionParams) error
	Commit        func() error
}

// Store is a ledgerstore.Store kept in process memory.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	history  map[string][]domain.Transaction // oldest first
	faults   Faults
	lastID   int64 // guarded by mu
	now      func() time.Time
}

var _ ledgerstore.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[string]domain.Account),
		history:  make(map[string][]domain.Transaction),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetFaults replaces the fault hooks used by transactions started afterwards.
func (s *Store) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.faults = f
}

// CreateAccount opens an account with the given opening balance.
func (s *Store) CreateAccount(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	if arg.ID == "" || arg.OpeningBalance.IsNegative() {
		zerolog.Ctx(ctx).Info().Msgf("CreateAccount(ctx, %+v): invalid params", arg)
		return domain.Account{}, domain.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[arg.ID]; ok {
		return domain.Account{}, domain.ErrAccountExists
	}

	a := domain.Account{
		ID:             arg.ID,
		Balance:        arg.OpeningBalance,
		OpeningBalance: arg.OpeningBalance,
		CreatedAt:      s.now(),
	}
	s.accounts[a.ID] = a

	return a, nil
}

// ExecTx runs fn against a transaction on the store.
//
// Read-only transactions hold the read lock for their whole duration and so
// see one snapshot. Write transactions hold the write lock: fn must not start
// another transaction on the same store.
func (s *Store) ExecTx(ctx context.Context, opts ledgerstore.TxOptions, fn ledgerstore.TxFunc) error {
	if opts.ReadOnly {
		s.mu.RLock()
		defer s.mu.RUnlock()
	} else {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	tx := &memTx{
		s:        s,
		readOnly: opts.ReadOnly,
		faults:   s.faults,
		staged:   make(map[string]domain.Account),
	}

	if err := fn(tx, tx); err != nil {
		return err
	}

	if opts.ReadOnly {
		return nil
	}

	return tx.commit(ctx)
}

// memTx methods run with s.mu held by ExecTx.
type memTx struct {
	s        *Store
	readOnly bool
	faults   Faults
	staged   map[string]domain.Account
	appends  []domain.Transaction
}

func storageFailure(ctx context.Context, op string, err error) error {
	zerolog.Ctx(ctx).Error().Err(err).Msg(op)
	return fmt.Errorf("%w: %s: %v", domain.ErrStorageFailure, op, err)
}

func (tx *memTx) Get(ctx context.Context, id string) (domain.Account, error) {
	if tx.faults.Get != nil {
		if err := tx.faults.Get(id); err != nil {
			return domain.Account{}, storageFailure(ctx, "get account", err)
		}
	}

	if a, ok := tx.staged[id]; ok {
		return a, nil
	}

	a, ok := tx.s.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return a, nil
}

// GetForUpdate is Get: write transactions already exclude each other.
func (tx *memTx) GetForUpdate(ctx context.Context, id string) (domain.Account, error) {
	return tx.Get(ctx, id)
}

func (tx *memTx) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) (domain.Account, error) {
	if tx.readOnly {
		return domain.Account{}, storageFailure(ctx, "update balance", fmt.Errorf("read-only transaction"))
	}

	if tx.faults.UpdateBalance != nil {
		if err := tx.faults.UpdateBalance(id); err != nil {
			return domain.Account{}, storageFailure(ctx, "update balance", err)
		}
	}

	if balance.IsNegative() {
		return domain.Account{}, domain.ErrInsufficientFunds
	}

	a, err := tx.Get(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}

	a.Balance = balance
	tx.staged[id] = a

	return a, nil
}

func (tx *memTx) Append(ctx context.Context, arg domain.AppendTransactionParams) (domain.Transaction, error) {
	if tx.readOnly {
		return domain.Transaction{}, storageFailure(ctx, "append transaction", fmt.Errorf("read-only transaction"))
	}

	if tx.faults.Append != nil {
		if err := tx.faults.Append(arg); err != nil {
			return domain.Transaction{}, storageFailure(ctx, "append transaction", err)
		}
	}

	if !arg.Kind.Valid() || !arg.Amount.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}

	if _, err := tx.Get(ctx, arg.AccountID); err != nil {
		return domain.Transaction{}, err
	}

	// Ids of rolled back transactions are never reused. The stamp is taken
	// under the write lock, so no other commit lands between it and ours.
	tx.s.lastID++
	t := domain.Transaction{
		ID:        tx.s.lastID,
		AccountID: arg.AccountID,
		Kind:      arg.Kind,
		Amount:    arg.Amount,
		CreatedAt: tx.s.now(),
	}
	tx.appends = append(tx.appends, t)

	return t, nil
}

func (tx *memTx) List(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	committed := tx.s.history[accountID]

	items := make([]domain.Transaction, 0, len(committed)+len(tx.appends))

	for i := len(tx.appends) - 1; i >= 0; i-- {
		if tx.appends[i].AccountID == accountID {
			items = append(items, tx.appends[i])
		}
	}

	for i := len(committed) - 1; i >= 0; i-- {
		items = append(items, committed[i])
	}

	return items, nil
}

func (tx *memTx) commit(ctx context.Context) error {
	if len(tx.staged) == 0 && len(tx.appends) == 0 {
		return nil
	}

	if tx.faults.Commit != nil {
		if err := tx.faults.Commit(); err != nil {
			return storageFailure(ctx, "commit", err)
		}
	}

	for id, a := range tx.staged {
		tx.s.accounts[id] = a
	}

	for _, t := range tx.appends {
		tx.s.history[t.AccountID] = append(tx.s.history[t.AccountID], t)
	}

	return nil
}
