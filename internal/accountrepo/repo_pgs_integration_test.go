//go:build integration

package accountrepo_test

import (
	"context"
	"testing"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRepoPGSConstraints(t *testing.T) {
	tx := integrationtest.SetupTX(t)
	repo := accountrepo.NewRepoPGS(tx)
	ctx := context.Background()

	account := integrationtest.SeedAccount(t, tx, decimal.NewFromInt(50))

	_, err := repo.Create(ctx, domain.CreateAccountParams{ID: account.ID})
	require.ErrorIs(t, err, domain.ErrAccountExists)
}

func TestRepoPGSBalanceCheck(t *testing.T) {
	db := integrationtest.SetupDB(t)
	repo := accountrepo.NewRepoPGS(db)
	ctx := context.Background()

	account := integrationtest.SeedAccount(t, db, decimal.NewFromInt(50))

	_, err := repo.UpdateBalance(ctx, account.ID, decimal.NewFromInt(-1))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	got, err := repo.Get(ctx, account.ID)
	require.NoError(t, err)
	require.True(t, got.Balance.Equal(decimal.NewFromInt(50)))

	_, err = repo.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}
