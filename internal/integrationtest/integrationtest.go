// Package integrationtest provides db helpers used in integration tests.
//
// The helpers need a PostgreSQL instance reachable with the settings in
// configs/app.env (or the environment) and are used by tests built with the
// integration tag.
package integrationtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/transactionrepo"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/rs/zerolog"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/shopspring/decimal"

	_ "github.com/lib/pq"
)

// Config loads the application config from the repository configs directory.
func Config(t *testing.T) configpkg.Config {
	t.Helper()

	config, err := configpkg.Load("../../configs")
	if err != nil {
		t.Fatalf(`configpkg.Load("../../configs") returned error: %v`, err)
	}

	zerolog.SetGlobalLevel(zerolog.FatalLevel)

	return config
}

// Flush removes all ledger rows without dropping the tables.
func Flush(t *testing.T, db *sql.DB) {
	t.Helper()

	if _, err := db.Exec(`TRUNCATE TABLE transactions, accounts RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}
}

// SetupDB connects to the test database, applies the migrations and cleans
// the tables once the test is done.
func SetupDB(t *testing.T) *sql.DB {
	t.Helper()

	config := Config(t)

	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		t.Fatalf("db initialization failed. err: %v", err)
	}

	if _, err := dbpkg.Migrate(db, config.DBDriver, migrate.Up); err != nil {
		t.Fatalf("db migration failed. err: %v", err)
	}

	t.Cleanup(func() {
		Flush(t, db)

		if err := db.Close(); err != nil {
			t.Fatalf("db cleanup failed. err: %v", err)
		}
	})

	return db
}

// SetupTX sets up a database transaction to be used in tests.
//
// Once the tests are done it will rollback the transaction.
func SetupTX(t *testing.T) *sql.Tx {
	t.Helper()

	db := SetupDB(t)

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("db.Begin() failed: %v", err)
	}

	t.Cleanup(func() {
		if err := tx.Rollback(); err != nil {
			t.Fatalf("tx.Rollback() failed: %v", err)
		}
	})

	return tx
}

// SeedAccount opens an account with a random id and the given opening balance.
func SeedAccount(t *testing.T, db dbpkg.SQLInterface, balance decimal.Decimal) domain.Account {
	t.Helper()

	arg := domain.CreateAccountParams{
		ID:             randompkg.AccountID(),
		OpeningBalance: balance,
	}

	account, err := accountrepo.NewRepoPGS(db).Create(context.Background(), arg)
	if err != nil {
		t.Fatalf("accountRepo.Create(context.Background(), %+v) returned error: %v", arg, err)
	}

	return account
}

// SeedTransactions appends count deposits with random amounts to the log of
// the account. The balance is left untouched.
func SeedTransactions(t *testing.T, db dbpkg.SQLInterface, accountID string, count int) []domain.Transaction {
	t.Helper()

	repo := transactionrepo.NewRepoPGS(db)
	items := make([]domain.Transaction, count)

	for i := range items {
		arg := domain.AppendTransactionParams{
			AccountID: accountID,
			Kind:      domain.KindDeposit,
			Amount:    randompkg.MoneyAmountBetween(1, 1000),
		}

		item, err := repo.Append(context.Background(), arg)
		if err != nil {
			t.Fatalf("transactionRepo.Append(context.Background(), %+v) returned error: %v", arg, err)
		}

		items[i] = item
	}

	return items
}
