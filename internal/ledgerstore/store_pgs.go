package ledgerstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/transactionrepo"
	"github.com/rs/zerolog"
)

// StorePGS is a Store backed by PostgreSQL transactions.
type StorePGS struct {
	conn *sql.DB
}

// NewStorePGS returns StorePGS.
func NewStorePGS(conn *sql.DB) *StorePGS {
	return &StorePGS{conn: conn}
}

// ExecTx runs fn with repositories bound to a single database transaction.
//
// Read-only transactions use REPEATABLE READ so that a balance and its history
// are read from the same snapshot.
func (s *StorePGS) ExecTx(ctx context.Context, opts TxOptions, fn TxFunc) error {
	l := zerolog.Ctx(ctx)

	txOpts := &sql.TxOptions{}
	if opts.ReadOnly {
		txOpts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}

	tx, err := s.conn.BeginTx(ctx, txOpts)
	if err != nil {
		l.Error().Err(err).Msg("begin transaction")
		return domain.ErrStorageFailure
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			l.Error().Err(err).Msg("rollback transaction")
		}
	}()

	if err := fn(accountrepo.NewRepoPGS(tx), transactionrepo.NewRepoPGS(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Msg("commit transaction")
		return domain.ErrStorageFailure
	}

	return nil
}
