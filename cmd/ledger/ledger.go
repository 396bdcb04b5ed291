package main

import (
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func openCmd(a *app) *cobra.Command {
	var opening string

	cmd := &cobra.Command{
		Use:   "open ACCOUNT_ID",
		Short: "open an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := decimal.NewFromString(opening)
			if err != nil || balance.IsNegative() {
				return domain.ErrInvalidAmount
			}

			account, err := a.accounts.Create(a.ctx(cmd), domain.CreateAccountParams{
				ID:             args[0],
				OpeningBalance: balance,
			})
			if err != nil {
				return err
			}

			printAccount(cmd.OutOrStdout(), account)

			return nil
		},
	}

	cmd.Flags().StringVar(&opening, "balance", "0", "opening balance")

	return cmd
}

func creditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "credit ACCOUNT_ID AMOUNT",
		Short: "add funds to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := domain.ParseAmount(args[1])
			if err != nil {
				return err
			}

			res, err := a.ledger.Credit(a.ctx(cmd), args[0], amount)
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), res)

			return nil
		},
	}
}

func debitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "debit ACCOUNT_ID AMOUNT",
		Short: "withdraw funds from an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := domain.ParseAmount(args[1])
			if err != nil {
				return err
			}

			res, err := a.ledger.Debit(a.ctx(cmd), args[0], amount)
			if err != nil {
				return err
			}

			printResult(cmd.OutOrStdout(), res)

			return nil
		},
	}
}

func queryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query ACCOUNT_ID",
		Short: "show the balance and history of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.ledger.Query(a.ctx(cmd), args[0])
			if err != nil {
				return err
			}

			printStatement(cmd.OutOrStdout(), st)

			return nil
		},
	}
}

func auditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit ACCOUNT_ID",
		Short: "check the balance of an account against its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.ledger.Audit(a.ctx(cmd), args[0])
			if err != nil {
				return err
			}

			printAudit(cmd.OutOrStdout(), report)

			if !report.Consistent {
				return errInconsistent
			}

			return nil
		},
	}
}
