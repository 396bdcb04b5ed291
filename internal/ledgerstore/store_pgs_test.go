package ledgerstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/ledgerstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	accountColumns     = []string{"id", "balance", "opening_balance", "created_at"}
	transactionColumns = []string{"id", "account_id", "kind", "amount", "created_at"}
)

func setupStore(t *testing.T) (*ledgerstore.StorePGS, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return ledgerstore.NewStorePGS(db), mock
}

// deposit is the unit of work the ledger runs for a credit of 200.
func deposit(ctx context.Context) ledgerstore.TxFunc {
	return func(accounts ledgerstore.AccountStore, log ledgerstore.TransactionLog) error {
		a, err := accounts.GetForUpdate(ctx, "acc-1")
		if err != nil {
			return err
		}

		amount := decimal.NewFromInt(200)
		if _, err := accounts.UpdateBalance(ctx, a.ID, a.Balance.Add(amount)); err != nil {
			return err
		}

		_, err = log.Append(ctx, domain.AppendTransactionParams{
			AccountID: a.ID,
			Kind:      domain.KindDeposit,
			Amount:    amount,
		})
		return err
	}
}

func TestExecTxCommit(t *testing.T) {
	store, mock := setupStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1 FOR UPDATE").
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("acc-1", "500", "500", now))
	mock.ExpectQuery("UPDATE accounts").
		WithArgs("700", "acc-1").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("acc-1", "700", "500", now))
	mock.ExpectQuery("INSERT INTO transactions").
		WithArgs("acc-1", "deposit", "200").
		WillReturnRows(sqlmock.NewRows(transactionColumns).AddRow(int64(1), "acc-1", "deposit", "200", now))
	mock.ExpectCommit()

	ctx := context.Background()
	require.NoError(t, store.ExecTx(ctx, ledgerstore.TxOptions{}, deposit(ctx)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTxRollsBackWhenAppendFails(t *testing.T) {
	store, mock := setupStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM accounts").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("acc-1", "500", "500", now))
	mock.ExpectQuery("UPDATE accounts").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("acc-1", "700", "500", now))
	mock.ExpectQuery("INSERT INTO transactions").
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	ctx := context.Background()
	err := store.ExecTx(ctx, ledgerstore.TxOptions{}, deposit(ctx))
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTxReturnsFuncError(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.ExecTx(context.Background(), ledgerstore.TxOptions{},
		func(ledgerstore.AccountStore, ledgerstore.TransactionLog) error {
			return domain.ErrInsufficientFunds
		})
	require.Equal(t, domain.ErrInsufficientFunds, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTxBeginFailure(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := store.ExecTx(context.Background(), ledgerstore.TxOptions{},
		func(ledgerstore.AccountStore, ledgerstore.TransactionLog) error {
			called = true
			return nil
		})
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	require.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTxCommitFailure(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("could not serialize access"))

	err := store.ExecTx(context.Background(), ledgerstore.TxOptions{},
		func(ledgerstore.AccountStore, ledgerstore.TransactionLog) error {
			return nil
		})
	require.ErrorIs(t, err, domain.ErrStorageFailure)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExecTxReadOnly(t *testing.T) {
	store, mock := setupStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\$1$").
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows(accountColumns).AddRow("acc-1", "700", "500", now))
	mock.ExpectQuery("SELECT (.+) FROM transactions").
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows(transactionColumns).AddRow(int64(1), "acc-1", "deposit", "200", now))
	mock.ExpectCommit()

	var (
		account domain.Account
		history []domain.Transaction
	)

	ctx := context.Background()
	err := store.ExecTx(ctx, ledgerstore.TxOptions{ReadOnly: true},
		func(accounts ledgerstore.AccountStore, log ledgerstore.TransactionLog) error {
			var err error
			if account, err = accounts.Get(ctx, "acc-1"); err != nil {
				return err
			}
			history, err = log.List(ctx, "acc-1")
			return err
		})
	require.NoError(t, err)
	require.True(t, account.Balance.Equal(decimal.NewFromInt(700)))
	require.Len(t, history, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
