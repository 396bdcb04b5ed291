// Package transactionrepo manages repository layer of the append-only transaction log.
package transactionrepo

import (
	"context"
	"errors"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates transaction log repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns transaction RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const appendQuery = `
INSERT INTO
    transactions (account_id, kind, amount)
VALUES
    ($1, $2, $3)
RETURNING id, account_id, kind, amount, created_at
`

// Append writes a transaction record and returns it with its id and timestamp.
//
// The timestamp is taken by the database at insert time. Append runs last in
// the unit of work and under the account's row lock, so it is the commit stamp
// of the mutation.
func (r *RepoPGS) Append(ctx context.Context, arg domain.AppendTransactionParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, appendQuery, arg.AccountID, string(arg.Kind), arg.Amount)

	var t domain.Transaction

	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.Kind,
		&t.Amount,
		&t.CreatedAt,
	)

	if err != nil {
		l.Error().Err(err).Msgf("Append(ctx, %+v)", arg)

		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Constraint {
			case "transactions_account_id_fkey":
				return t, domain.ErrAccountNotFound
			case "transactions_amount_check", "transactions_kind_check":
				return t, domain.ErrInvalidAmount
			}
		}

		return t, domain.ErrStorageFailure
	}

	return t, nil
}

const listQuery = `
SELECT
	id, account_id, kind, amount, created_at
FROM transactions
WHERE account_id = $1
ORDER BY id DESC
`

// List returns the account's history, newest first.
func (r *RepoPGS) List(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, accountID)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, domain.ErrStorageFailure
	}
	defer rows.Close()

	items := []domain.Transaction{}

	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID,
			&t.AccountID,
			&t.Kind,
			&t.Amount,
			&t.CreatedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return nil, domain.ErrStorageFailure
		}

		items = append(items, t)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, domain.ErrStorageFailure
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, domain.ErrStorageFailure
	}

	return items, nil
}
