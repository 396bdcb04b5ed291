// Package ledgerservice manages business logic layer of the ledger.
//
// Every mutation of an account runs inside that account's critical section:
// the lock is taken before the balance is read and released after the new
// balance and its transaction record are committed together.
package ledgerservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/ledgerstore"
	"github.com/go-petr/pet-ledger/internal/lockmanager"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation names used in errors, logs and spans.
const (
	OpCredit = "credit"
	OpDebit  = "debit"
	OpQuery  = "query"
	OpAudit  = "audit"
)

const tracerName = "github.com/go-petr/pet-ledger/internal/ledgerservice"

// Service facilitates ledger service layer logic.
type Service struct {
	store  ledgerstore.Store
	locker lockmanager.Locker
	tracer trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider makes the service record spans with tp instead of the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// New returns ledger service struct to manage balances of accounts.
func New(store ledgerstore.Store, locker lockmanager.Locker, opts ...Option) *Service {
	s := &Service{
		store:  store,
		locker: locker,
		tracer: otel.Tracer(tracerName),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Credit adds amount to the balance of the account and records a deposit.
func (s *Service) Credit(ctx context.Context, accountID string, amount decimal.Decimal) (domain.Result, error) {
	return s.apply(ctx, OpCredit, accountID, amount)
}

// Debit subtracts amount from the balance of the account and records a
// withdrawal. The balance never goes below zero.
func (s *Service) Debit(ctx context.Context, accountID string, amount decimal.Decimal) (domain.Result, error) {
	return s.apply(ctx, OpDebit, accountID, amount)
}

func (s *Service) apply(ctx context.Context, op, accountID string, amount decimal.Decimal) (res domain.Result, err error) {
	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("account.id", accountID),
		attribute.String("amount", amount.String()),
	))
	defer func() { endSpan(span, err) }()

	l := zerolog.Ctx(ctx).With().
		Str("op", op).
		Str("account_id", accountID).
		Str("amount", amount.String()).
		Logger()

	fail := func(err error) (domain.Result, error) {
		return domain.Result{}, &domain.LedgerError{Op: op, AccountID: accountID, Amount: amount, Err: err}
	}

	if !amount.IsPositive() {
		l.Info().Msg("rejected non-positive amount")
		return fail(domain.ErrInvalidAmount)
	}

	h, err := s.locker.Acquire(ctx, accountID)
	if err != nil {
		err = lockError(err)
		l.Info().Err(err).Msg("account lock not granted")

		return fail(err)
	}
	defer h.Release()

	span.AddEvent("lock acquired")

	kind := domain.KindDeposit
	if op == OpDebit {
		kind = domain.KindWithdraw
	}

	// The caller may give up while waiting for the lock, not halfway through the commit.
	txCtx := l.WithContext(context.WithoutCancel(ctx))

	err = s.store.ExecTx(txCtx, ledgerstore.TxOptions{}, func(accounts ledgerstore.AccountStore, log ledgerstore.TransactionLog) error {
		account, err := accounts.GetForUpdate(txCtx, accountID)
		if err != nil {
			return err
		}

		balance := account.Balance.Add(amount)
		if kind == domain.KindWithdraw {
			if account.Balance.LessThan(amount) {
				return domain.ErrInsufficientFunds
			}

			balance = account.Balance.Sub(amount)
		}

		if res.Account, err = accounts.UpdateBalance(txCtx, accountID, balance); err != nil {
			return err
		}

		res.Transaction, err = log.Append(txCtx, domain.AppendTransactionParams{
			AccountID: accountID,
			Kind:      kind,
			Amount:    amount,
		})

		return err
	})
	if err != nil {
		err = storeError(err)
		if errors.Is(err, domain.ErrStorageFailure) {
			l.Error().Err(err).Send()
		} else {
			l.Info().Err(err).Send()
		}

		return fail(err)
	}

	l.Info().Str("balance", res.Account.Balance.String()).Int64("transaction_id", res.Transaction.ID).Msg("committed")

	return res, nil
}

// Query returns the current balance of the account and its history, newest
// first. It does not wait for the account lock: the store guarantees that a
// committed balance and its record are observed together.
func (s *Service) Query(ctx context.Context, accountID string) (st domain.Statement, err error) {
	ctx, span := s.tracer.Start(ctx, OpQuery, trace.WithAttributes(attribute.String("account.id", accountID)))
	defer func() { endSpan(span, err) }()

	st, err = s.statement(ctx, accountID)
	if err != nil {
		return domain.Statement{}, &domain.LedgerError{Op: OpQuery, AccountID: accountID, Err: err}
	}

	span.SetAttributes(attribute.Int("transactions", len(st.Transactions)))

	return st, nil
}

// Audit recomputes the balance of the account from its opening balance and
// history and reports whether it matches the stored one.
func (s *Service) Audit(ctx context.Context, accountID string) (report domain.AuditReport, err error) {
	ctx, span := s.tracer.Start(ctx, OpAudit, trace.WithAttributes(attribute.String("account.id", accountID)))
	defer func() { endSpan(span, err) }()

	st, err := s.statement(ctx, accountID)
	if err != nil {
		return domain.AuditReport{}, &domain.LedgerError{Op: OpAudit, AccountID: accountID, Err: err}
	}

	report = domain.AuditReport{
		AccountID:    accountID,
		Balance:      st.Account.Balance,
		Deposits:     decimal.Zero,
		Withdrawals:  decimal.Zero,
		Transactions: len(st.Transactions),
	}

	for _, t := range st.Transactions {
		switch t.Kind {
		case domain.KindDeposit:
			report.Deposits = report.Deposits.Add(t.Amount)
		case domain.KindWithdraw:
			report.Withdrawals = report.Withdrawals.Add(t.Amount)
		}
	}

	report.Expected = st.Account.OpeningBalance.Add(report.Deposits).Sub(report.Withdrawals)
	report.Consistent = report.Expected.Equal(report.Balance)

	if !report.Consistent {
		zerolog.Ctx(ctx).Warn().
			Str("account_id", accountID).
			Str("balance", report.Balance.String()).
			Str("expected", report.Expected.String()).
			Msg("balance does not match history")
	}

	return report, nil
}

func (s *Service) statement(ctx context.Context, accountID string) (domain.Statement, error) {
	var st domain.Statement

	err := s.store.ExecTx(ctx, ledgerstore.TxOptions{ReadOnly: true}, func(accounts ledgerstore.AccountStore, log ledgerstore.TransactionLog) error {
		var err error

		if st.Account, err = accounts.Get(ctx, accountID); err != nil {
			return err
		}

		st.Transactions, err = log.List(ctx, accountID)

		return err
	})
	if err != nil {
		err = storeError(err)
		zerolog.Ctx(ctx).Info().Err(err).Str("account_id", accountID).Send()

		return domain.Statement{}, err
	}

	return st, nil
}

// lockError keeps the kinds a caller can act on and reports anything else
// from the lock backend as a storage failure.
func lockError(err error) error {
	switch {
	case errors.Is(err, domain.ErrLockTimeout),
		errors.Is(err, domain.ErrStorageFailure),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: lock: %v", domain.ErrStorageFailure, err)
	}
}

func storeError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrStorageFailure):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
