package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/go-petr/pet-ledger/internal/domain"
)

var errInconsistent = errors.New("balance does not match history")

var (
	okColor       = color.New(color.FgGreen)
	errorColor    = color.New(color.FgRed, color.Bold)
	depositColor  = color.New(color.FgGreen)
	withdrawColor = color.New(color.FgYellow)
	headerColor   = color.New(color.Bold)
)

func printAccount(w io.Writer, a domain.Account) {
	okColor.Fprintf(w, "opened %s with balance %s\n", a.ID, a.Balance)
}

func printResult(w io.Writer, res domain.Result) {
	okColor.Fprintf(w, "%s %s %s: balance %s (transaction %d)\n",
		res.Transaction.Kind, res.Account.ID, res.Transaction.Amount, res.Account.Balance, res.Transaction.ID)
}

func kindColor(k domain.TransactionKind) *color.Color {
	if k == domain.KindWithdraw {
		return withdrawColor
	}

	return depositColor
}

func printStatement(w io.Writer, st domain.Statement) {
	headerColor.Fprintf(w, "%s balance %s\n", st.Account.ID, st.Account.Balance)

	if len(st.Transactions) == 0 {
		fmt.Fprintln(w, "no transactions")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tAMOUNT\tCREATED AT")

	for _, t := range st.Transactions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			t.ID, kindColor(t.Kind).Sprint(t.Kind), t.Amount, t.CreatedAt.Format(time.RFC3339))
	}

	tw.Flush()
}

func printAudit(w io.Writer, r domain.AuditReport) {
	status := okColor.Sprint("consistent")
	if !r.Consistent {
		status = errorColor.Sprint("INCONSISTENT")
	}

	fmt.Fprintf(w, "%s: %s\n", r.AccountID, status)
	fmt.Fprintf(w, "  balance      %s\n", r.Balance)
	fmt.Fprintf(w, "  expected     %s\n", r.Expected)
	fmt.Fprintf(w, "  deposits     %s\n", r.Deposits)
	fmt.Fprintf(w, "  withdrawals  %s\n", r.Withdrawals)
	fmt.Fprintf(w, "  transactions %d\n", r.Transactions)
}
