// Package accountrepo manages repository layer of account balances.
package accountrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// RepoPGS facilitates account repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const createQuery = `
INSERT INTO
    accounts (id, balance, opening_balance)
VALUES
    ($1, $2, $2)
RETURNING id, balance, opening_balance, created_at
`

// Create opens the account with its opening balance and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery, arg.ID, arg.OpeningBalance)

	a, err := scanAccount(row)
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch {
			case pqErr.Code == uniqueViolation:
				return a, domain.ErrAccountExists
			case pqErr.Constraint == "accounts_balance_check",
				pqErr.Constraint == "accounts_opening_balance_check":
				return a, domain.ErrInvalidAmount
			}
		}

		return a, domain.ErrStorageFailure
	}

	return a, nil
}

const getQuery = `
SELECT
	id, balance, opening_balance, created_at
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id string) (domain.Account, error) {
	return r.get(ctx, getQuery, id)
}

const getForUpdateQuery = `
SELECT
	id, balance, opening_balance, created_at
FROM accounts
WHERE id = $1
FOR UPDATE
`

// GetForUpdate returns the account with the given id and locks its row until
// the surrounding transaction ends.
func (r *RepoPGS) GetForUpdate(ctx context.Context, id string) (domain.Account, error) {
	return r.get(ctx, getForUpdateQuery, id)
}

func (r *RepoPGS) get(ctx context.Context, query, id string) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			l.Info().Str("account_id", id).Msg("account not found")
			return a, domain.ErrAccountNotFound
		}

		l.Error().Err(err).Str("account_id", id).Send()
		return a, domain.ErrStorageFailure
	}

	return a, nil
}

const updateBalanceQuery = `
UPDATE accounts
SET balance = $1
WHERE id = $2
RETURNING id, balance, opening_balance, created_at
`

// UpdateBalance sets the account's balance and returns the changed account.
func (r *RepoPGS) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, updateBalanceQuery, balance, id))
	if err != nil {
		l.Error().Err(err).Str("account_id", id).Str("balance", balance.String()).Send()

		if errors.Is(err, sql.ErrNoRows) {
			return a, domain.ErrAccountNotFound
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "accounts_balance_check" {
			return a, domain.ErrInsufficientFunds
		}

		return a, domain.ErrStorageFailure
	}

	return a, nil
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Balance,
		&a.OpeningBalance,
		&a.CreatedAt,
	)

	return a, err
}
