package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "import FILE...",
		Short: "Import CSV, XLSX or XLS bank statements",
		Long: "Import bank statements. Rows already in the ledger are skipped as duplicates, " +
			"so re-importing a file is safe. Rows that cannot be read are rejected and reported.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed []error
			for _, path := range args {
				if err := opts.importFile(cmd, path, verbose); err != nil {
					printf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					failed = append(failed, err)
				}
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d files failed to import: %w", len(failed), len(args), errors.Join(failed...))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every rejected row")

	return cmd
}

func (o *rootOptions) importFile(cmd *cobra.Command, path string, verbose bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := o.app.Imports.Import(cmd.Context(), filepath.Base(path), f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printf(out, "%s (%s): %d accepted, %d rejected, %d duplicates, %d blank rows skipped\n",
		report.File, report.Format, report.Accepted, report.Rejected, report.Duplicates, report.Skipped)
	if verbose {
		for _, rej := range report.Rejections {
			printf(out, "  line %d: %s\n", rej.Line, rej.Reason)
		}
		if hidden := report.Rejected - len(report.Rejections); hidden > 0 {
			printf(out, "  ... and %d more\n", hidden)
		}
	}
	return nil
}

func newImportsCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "imports",
		Short: "List past imports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := opts.app.Imports.Imports(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			printf(tw, "ID\tFILE\tFORMAT\tIMPORTED\tACCEPTED\tREJECTED\tDUPLICATES\n")
			for _, r := range records {
				printf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					r.ID, r.FileName, r.Format, r.ImportedAt.Format("2006-01-02 15:04"), r.Accepted, r.Rejected, r.Duplicates)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of imports to list")

	return cmd
}
