package commands

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"budgetledger/internal/core"
	"budgetledger/internal/prorate"
)

func newRecurringCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Manage recurring expenses",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recurring expenses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			expenses, err := opts.app.Recurring.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			printf(tw, "ID\tLABEL\tAMOUNT\tFREQUENCY\tSTART\tEND\tPER MONTH\tCATEGORY\n")
			for _, e := range expenses {
				end := e.End.String()
				if end == "" {
					end = "-"
				}
				perMonth, err := prorate.MonthlyEquivalent(e)
				if err != nil {
					return err
				}
				printf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.Label, opts.money(e.Amount), e.Frequency, e.Start, end,
					opts.money(perMonth), e.Category)
			}
			return tw.Flush()
		},
	}

	var (
		re                core.RecurringExpense
		amount, frequency string
		start, end        string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a recurring expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if re.Amount, err = core.ParseAmount(amount); err != nil {
				return err
			}
			if re.Start, err = parseDateFlag("start", start); err != nil {
				return err
			}
			if re.End, err = parseDateFlag("end", end); err != nil {
				return err
			}
			re.Frequency = core.Frequency(frequency)

			created, err := opts.app.Recurring.Create(cmd.Context(), re)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "recurring expense %d created: %s %s %s\n",
				created.ID, created.Label, opts.money(created.Amount), created.Frequency)
			return nil
		},
	}
	add.Flags().StringVar(&re.Label, "label", "", "what the expense is")
	add.Flags().StringVar(&amount, "amount", "", "amount per occurrence")
	add.Flags().StringVar(&frequency, "frequency", string(core.Monthly), "weekly, monthly, quarterly, semiannual or yearly")
	add.Flags().StringVar(&start, "start", "", "first billing date (YYYY-MM-DD)")
	add.Flags().StringVar(&end, "end", "", "last date the expense applies (YYYY-MM-DD)")
	add.Flags().StringVar(&re.Category, "category", "", "category label")
	for _, name := range []string{"label", "amount", "start"} {
		_ = add.MarkFlagRequired(name)
	}

	remove := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a recurring expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return core.Validationf("invalid recurring expense id %q", args[0])
			}
			if err := opts.app.Recurring.Delete(cmd.Context(), id); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "recurring expense %d deleted\n", id)
			return nil
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func newProrateCommand(opts *rootOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "prorate",
		Short: "Show what recurring expenses cost over a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := periodFlags(from, to)
			if err != nil {
				return err
			}
			b, err := opts.app.Recurring.Prorated(cmd.Context(), p)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			printf(tw, "LABEL\tFREQUENCY\tAMOUNT\tSHARE\n")
			for _, it := range b.Items {
				printf(tw, "%s\t%s\t%s\t%s\n", it.Expense.Label, it.Expense.Frequency, opts.money(it.Expense.Amount), opts.money(it.Amount))
			}
			printf(tw, "TOTAL %s\t\t\t%s\n", p, opts.money(b.Total))
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD, default first of this month)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD, default end of this month)")

	return cmd
}

// periodFlags fills a missing bound from the current month.
func periodFlags(from, to string) (core.Period, error) {
	now := time.Now()
	p := core.MonthPeriod(now.Year(), int(now.Month()))
	start, err := parseDateFlag("from", from)
	if err != nil {
		return core.Period{}, err
	}
	end, err := parseDateFlag("to", to)
	if err != nil {
		return core.Period{}, err
	}
	if !start.IsZero() {
		p.Start = start
	}
	if !end.IsZero() {
		p.End = end
	}
	if p.End.Before(p.Start) {
		return core.Period{}, core.Validationf("--to %s is before --from %s", p.End, p.Start)
	}
	return p, nil
}

func newSummaryCommand(opts *rootOptions) *cobra.Command {
	now := time.Now()
	var year, month int

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize a month's spending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := opts.app.Summary.Month(cmd.Context(), year, month)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printf(out, "%04d-%02d\n", sum.Year, sum.Month)
			tw := newTable(out)
			for _, c := range sum.ByCategory {
				printf(tw, "  %s\t%s\n", c.Name, opts.money(c.Amount))
			}
			printf(tw, "Imported\t%s\n", opts.money(sum.Imported))
			printf(tw, "Recurring\t%s\n", opts.money(sum.Recurring))
			printf(tw, "Travel\t%s\n", opts.money(sum.Travel))
			printf(tw, "Total\t%s\n", opts.money(sum.Total))
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&year, "year", now.Year(), "year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "month (1-12)")

	return cmd
}
