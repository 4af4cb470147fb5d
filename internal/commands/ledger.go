package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"budgetledger/internal/core"
	"budgetledger/internal/services"
	"budgetledger/internal/storage"
)

func newTransactionsCommand(opts *rootOptions) *cobra.Command {
	var (
		from, to      string
		filter        storage.TransactionFilter
		uncategorized bool
	)

	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List imported transactions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if filter.From, err = parseDateFlag("from", from); err != nil {
				return err
			}
			if filter.To, err = parseDateFlag("to", to); err != nil {
				return err
			}
			filter.Uncategorized = uncategorized

			txs, err := opts.app.Ledger.Transactions(cmd.Context(), filter)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			printf(tw, "ID\tDATE\tAMOUNT\tCATEGORY\tDESCRIPTION\n")
			for _, t := range txs {
				category := t.Category
				if category == "" {
					category = services.UncategorizedLabel
				}
				printf(tw, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Date, opts.money(t.Amount), category, t.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter.Category, "category", "", "only this category")
	cmd.Flags().BoolVar(&uncategorized, "uncategorized", false, "only uncategorized transactions")
	cmd.Flags().StringVar(&filter.SourceFile, "source", "", "only transactions imported from this file")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "maximum number of rows")
	cmd.MarkFlagsMutuallyExclusive("category", "uncategorized")

	cmd.AddCommand(newEditTransactionsCommand(opts))
	return cmd
}

func newEditTransactionsCommand(opts *rootOptions) *cobra.Command {
	var date, amount, description string

	cmd := &cobra.Command{
		Use:   "edit ID...",
		Short: "Correct the date, amount or description of transactions",
		Long: "Apply the given fields to every listed transaction. Fields that are not " +
			"set keep their stored value; if any ID is missing nothing is changed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return core.Validationf("invalid transaction id %q", arg)
				}
				ids = append(ids, id)
			}

			var patch services.TransactionPatch
			flags := cmd.Flags()
			if flags.Changed("date") {
				d, err := parseDateFlag("date", date)
				if err != nil {
					return err
				}
				if d.IsZero() {
					return core.Validationf("--date cannot be empty")
				}
				patch.Date = &d
			}
			if flags.Changed("amount") {
				a, err := core.ParseAmount(amount)
				if err != nil {
					return err
				}
				patch.Amount = &a
			}
			if flags.Changed("description") {
				patch.Description = &description
			}

			updated, err := opts.app.Ledger.UpdateTransactions(cmd.Context(), ids, patch)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			printf(tw, "ID\tDATE\tAMOUNT\tDESCRIPTION\n")
			for _, t := range updated {
				printf(tw, "%d\t%s\t%s\t%s\n", t.ID, t.Date, opts.money(t.Amount), t.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "new date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&amount, "amount", "", "new signed amount")
	cmd.Flags().StringVar(&description, "description", "", "new description")

	return cmd
}

func newCategorizeCommand(opts *rootOptions) *cobra.Command {
	var (
		match             string
		onlyUncategorized bool
	)

	cmd := &cobra.Command{
		Use:   "categorize [ID] LABEL",
		Short: "Set the category of a transaction",
		Long: "Set the category of transaction ID, or with --match of every transaction whose " +
			"description contains the pattern. The label Uncategorized clears the category.",
		Args: func(cmd *cobra.Command, args []string) error {
			if match != "" {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if match != "" {
				n, err := opts.app.Ledger.Categorize(ctx, match, args[0], onlyUncategorized)
				if err != nil {
					return err
				}
				printf(cmd.OutOrStdout(), "%d transactions categorized as %s\n", n, args[0])
				return nil
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return core.Validationf("invalid transaction id %q", args[0])
			}
			if err := opts.app.Ledger.SetCategory(ctx, id, args[1]); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "transaction %d categorized as %s\n", id, args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&match, "match", "", "categorize every transaction whose description contains this text")
	cmd.Flags().BoolVar(&onlyUncategorized, "only-uncategorized", false, "with --match, leave categorized transactions alone")

	return cmd
}

func newCategoriesCommand(opts *rootOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List or manage categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := opts.app.Ledger.Categories(cmd.Context(), core.CategoryKind(kind))
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			printf(tw, "NAME\tKIND\n")
			for _, c := range cats {
				printf(tw, "%s\t%s\n", c.Name, c.Kind)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "expense, income or travel")

	var addKind string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.app.Ledger.CreateCategory(cmd.Context(), core.Category{Name: args[0], Kind: core.CategoryKind(addKind)})
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "category %s (%s) created\n", c.Name, c.Kind)
			return nil
		},
	}
	add.Flags().StringVar(&addKind, "kind", string(core.KindExpense), "expense, income or travel")

	remove := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.app.Ledger.DeleteCategory(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "category %s deleted\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}
