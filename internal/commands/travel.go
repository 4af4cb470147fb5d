package commands

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"budgetledger/internal/core"
)

func newTravelCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "travel",
		Short: "Track the travel fund",
	}

	balance := &cobra.Command{
		Use:   "balance",
		Short: "Show the current travel fund balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bal, err := opts.app.Travel.CurrentBalance(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s", opts.money(bal.Amount))
			if bal.Overdrawn {
				printf(cmd.OutOrStdout(), " (overdrawn)")
			}
			printf(cmd.OutOrStdout(), "\n")
			return nil
		},
	}

	var from, to string
	series := &cobra.Command{
		Use:   "series",
		Short: "Show the balance after each day with a change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDateFlag("from", from)
			if err != nil {
				return err
			}
			end, err := parseDateFlag("to", to)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			printf(tw, "DATE\tCHANGE\tBALANCE\n")
			for p, err := range opts.app.Travel.BalanceSeries(cmd.Context(), start, end) {
				if err != nil {
					return err
				}
				printf(tw, "%s\t%s\t%s\n", p.Date, opts.money(p.Change), opts.money(p.Balance))
			}
			return tw.Flush()
		},
	}
	series.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	series.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD)")

	allocate := &cobra.Command{
		Use:   "allocate DATE AMOUNT [DESCRIPTION...]",
		Short: "Add money to the travel fund",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, amount, err := entryArgs(args)
			if err != nil {
				return err
			}
			e, err := opts.app.Travel.AddAllocation(cmd.Context(), date, amount, strings.Join(args[2:], " "))
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "allocation %d recorded: %s\n", e.ID, opts.money(e.Amount))
			return nil
		},
	}

	var transactionID int64
	spend := &cobra.Command{
		Use:   "spend DATE AMOUNT [DESCRIPTION...]",
		Short: "Record a travel expense",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, amount, err := entryArgs(args)
			if err != nil {
				return err
			}
			var link *int64
			if cmd.Flags().Changed("transaction") {
				link = &transactionID
			}
			e, err := opts.app.Travel.AddExpense(cmd.Context(), date, amount, strings.Join(args[2:], " "), link)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "expense %d recorded: %s\n", e.ID, opts.money(e.Amount))
			bal, err := opts.app.Travel.CurrentBalance(cmd.Context())
			if err != nil {
				return err
			}
			if bal.Overdrawn {
				printf(cmd.ErrOrStderr(), "warning: travel fund overdrawn, balance %s\n", opts.money(bal.Amount))
			}
			return nil
		},
	}
	spend.Flags().Int64Var(&transactionID, "transaction", 0, "link to an imported transaction id")

	var entriesFrom, entriesTo string
	entries := &cobra.Command{
		Use:   "entries",
		Short: "List travel fund entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDateFlag("from", entriesFrom)
			if err != nil {
				return err
			}
			end, err := parseDateFlag("to", entriesTo)
			if err != nil {
				return err
			}
			list, err := opts.app.Travel.Entries(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			printf(tw, "ID\tDATE\tAMOUNT\tDESCRIPTION\n")
			for _, e := range list {
				printf(tw, "%d\t%s\t%s\t%s\n", e.ID, e.Date, opts.money(e.Amount), e.Description)
			}
			return tw.Flush()
		},
	}
	entries.Flags().StringVar(&entriesFrom, "from", "", "first date (YYYY-MM-DD)")
	entries.Flags().StringVar(&entriesTo, "to", "", "last date (YYYY-MM-DD)")

	remove := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a travel fund entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return core.Validationf("invalid travel entry id %q", args[0])
			}
			if err := opts.app.Travel.DeleteEntry(cmd.Context(), id); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "travel entry %d deleted\n", id)
			return nil
		},
	}

	cmd.AddCommand(balance, series, allocate, spend, entries, remove)
	return cmd
}

func entryArgs(args []string) (core.Date, decimal.Decimal, error) {
	date, err := core.ParseDate(args[0])
	if err != nil {
		return core.Date{}, decimal.Decimal{}, err
	}
	amount, err := core.ParseAmount(args[1])
	if err != nil {
		return core.Date{}, decimal.Decimal{}, err
	}
	return date, amount, nil
}
