//go:build integration

package ledgerservice_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/internal/ledgerstore"
	"github.com/go-petr/pet-ledger/internal/lockmanager"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPostgresScenario(t *testing.T) {
	db := integrationtest.SetupDB(t)
	account := integrationtest.SeedAccount(t, db, decimal.NewFromInt(500))

	s := ledgerservice.New(ledgerstore.NewStorePGS(db), lockmanager.NewMemoryLocker(time.Second))
	ctx := context.Background()

	_, err := s.Credit(ctx, account.ID, decimal.NewFromInt(200))
	require.NoError(t, err)

	_, err = s.Debit(ctx, account.ID, decimal.NewFromInt(800))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	res, err := s.Debit(ctx, account.ID, decimal.NewFromInt(700))
	require.NoError(t, err)
	require.True(t, res.Account.Balance.IsZero())

	st, err := s.Query(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, st.Transactions, 2)
	require.Equal(t, domain.KindWithdraw, st.Transactions[0].Kind)

	report, err := s.Audit(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, report.Consistent)
}

// Two processes share the database but not the in-memory locker: the row lock
// taken by GetForUpdate still serializes them.
func TestPostgresConcurrentDebitsWithSeparateLockers(t *testing.T) {
	db := integrationtest.SetupDB(t)
	account := integrationtest.SeedAccount(t, db, decimal.NewFromInt(100))

	store := ledgerstore.NewStorePGS(db)
	services := []*ledgerservice.Service{
		ledgerservice.New(store, lockmanager.NewMemoryLocker(5*time.Second)),
		ledgerservice.New(store, lockmanager.NewMemoryLocker(5*time.Second)),
	}

	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		succeeded int32
	)

	for _, s := range services {
		wg.Add(1)

		go func(s *ledgerservice.Service) {
			defer wg.Done()
			<-start

			_, err := s.Debit(context.Background(), account.ID, decimal.NewFromInt(100))
			if err == nil {
				atomic.AddInt32(&succeeded, 1)
			} else if !errors.Is(err, domain.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}(s)
	}

	close(start)
	wg.Wait()

	require.EqualValues(t, 1, succeeded)

	st, err := services[0].Query(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, st.Account.Balance.IsZero())
	require.Len(t, st.Transactions, 1)
}

func TestPostgresAuditDetectsOrphanRecords(t *testing.T) {
	db := integrationtest.SetupDB(t)
	account := integrationtest.SeedAccount(t, db, decimal.NewFromInt(10))
	integrationtest.SeedTransactions(t, db, account.ID, 3)

	s := ledgerservice.New(ledgerstore.NewStorePGS(db), lockmanager.NewMemoryLocker(time.Second))

	report, err := s.Audit(context.Background(), account.ID)
	require.NoError(t, err)
	require.False(t, report.Consistent)
	require.Equal(t, 3, report.Transactions)
	require.True(t, report.Balance.Equal(decimal.NewFromInt(10)))
}
