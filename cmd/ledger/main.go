// Command ledger credits, debits and inspects ledger accounts.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/ledgerservice"
	"github.com/go-petr/pet-ledger/internal/ledgerstore"
	"github.com/go-petr/pet-ledger/internal/lockmanager"
	"github.com/go-petr/pet-ledger/pkg/configpkg"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/go-petr/pet-ledger/pkg/logpkg"
	"github.com/go-petr/pet-ledger/pkg/redispkg"
	"github.com/go-petr/pet-ledger/pkg/tracingpkg"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	_ "github.com/lib/pq"
)

// app holds the dependencies shared by all commands.
type app struct {
	configPath string
	config     configpkg.Config
	logger     zerolog.Logger
	db         *sql.DB
	accounts   *accountrepo.RepoPGS
	ledger     *ledgerservice.Service
	closers    []func() error
}

// setup loads the configuration and connects to the database and lock backend.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.ledger != nil {
		return nil
	}

	config, err := configpkg.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("cannot load config: %w", err)
	}

	a.config = config
	a.logger = logpkg.New(config)

	shutdown, err := tracingpkg.Setup(cmd.Context(), config.TracingEndpoint, "ledger")
	if err != nil {
		return fmt.Errorf("cannot set up tracing: %w", err)
	}

	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return shutdown(ctx)
	})

	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		return fmt.Errorf("cannot connect to database: %w", err)
	}

	a.db = db
	a.closers = append(a.closers, db.Close)

	var locker lockmanager.Locker

	switch config.LockBackend {
	case configpkg.LockBackendRedis:
		client, err := redispkg.NewClient(cmd.Context(), config.RedisAddress)
		if err != nil {
			return fmt.Errorf("cannot connect to redis: %w", err)
		}

		a.closers = append(a.closers, client.Close)
		locker = lockmanager.NewRedisLocker(client, config.LockTTL, config.LockWaitTimeout)
	default:
		locker = lockmanager.NewMemoryLocker(config.LockWaitTimeout)
	}

	a.accounts = accountrepo.NewRepoPGS(db)
	a.ledger = ledgerservice.New(ledgerstore.NewStorePGS(db), locker)

	a.logger.Debug().
		Str("lock_backend", config.LockBackend).
		Dur("lock_wait_timeout", config.LockWaitTimeout).
		Msg("ledger is ready")

	return nil
}

// close releases what setup acquired. It runs after every command, failed
// ones included, so spans of failed operations are flushed too.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error().Err(err).Msg("close")
		}
	}

	a.closers = nil
}

// execute runs cmd and then closes the app whatever the outcome.
func execute(ctx context.Context, a *app, cmd *cobra.Command) error {
	defer a.close()

	return cmd.ExecuteContext(ctx)
}

// ctx returns the command context carrying the application logger.
func (a *app) ctx(cmd *cobra.Command) context.Context {
	return a.logger.WithContext(cmd.Context())
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "ledger",
		Short:             "Account ledger: credit, debit and query balances",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "./configs", "directory containing app.env")

	cmd.AddCommand(migrateCmd(a))
	cmd.AddCommand(openCmd(a))
	cmd.AddCommand(creditCmd(a))
	cmd.AddCommand(debitCmd(a))
	cmd.AddCommand(queryCmd(a))
	cmd.AddCommand(auditCmd(a))

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{logger: zerolog.Nop()}

	if err := execute(ctx, a, newRootCmd(a)); err != nil {
		errorColor.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
