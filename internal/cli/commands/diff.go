package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/textpool/textpool/internal/cliopt"
	"github.com/textpool/textpool/internal/cliutil"
	"github.com/textpool/textpool/textpool"
)

func NewDiffCmd(g *cliopt.GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Compare text variants",
		Long: `Compare text variants character by character. Removed text is
printed as ~~old~~ and inserted text as **new**.`,
	}
	cmd.AddCommand(newDiffRowsCmd(g), newDiffVariantsCmd(g))
	return cmd
}

func newDiffRowsCmd(g *cliopt.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rows <pool.source> <id> <id>...",
		Short: "Compare rows column by column against the first one",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := cliutil.ParseTarget(args[0])
			return runDiff(cmd, g, func(ctx context.Context, s *textpool.Service) ([]textpool.ColumnDiff, error) {
				return s.CompareRows(ctx, t, args[1:])
			})
		},
	}
}

func newDiffVariantsCmd(g *cliopt.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "variants <pool.source> <value>",
		Short: "Compare the variant columns of a value against it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := cliutil.ParseTarget(args[0])
			return runDiff(cmd, g, func(ctx context.Context, s *textpool.Service) ([]textpool.ColumnDiff, error) {
				return s.CompareVariants(ctx, t, args[1])
			})
		},
	}
}

func runDiff(cmd *cobra.Command, g *cliopt.GlobalOptions, compare func(context.Context, *textpool.Service) ([]textpool.ColumnDiff, error)) error {
	s, err := cliutil.OpenService(cmd.Context(), *g)
	if err != nil {
		return err
	}
	defer s.Close()

	diffs, err := compare(cmd.Context(), s)
	if err != nil {
		return err
	}
	if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
		cliutil.PrintJSON(cmd.OutOrStdout(), diffs)
		return nil
	}
	printDiffs(cmd.OutOrStdout(), diffs)
	return nil
}

// printDiffs prints each column with its base and one line per compared
// value; "=" marks a value equal to the base.
func printDiffs(w io.Writer, diffs []textpool.ColumnDiff) {
	for i, d := range diffs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s: %s\n", d.Column, d.Base)
		for _, c := range d.Changes {
			if c.Str == "" {
				fmt.Fprintln(w, "  =")
				continue
			}
			fmt.Fprintf(w, "  %s\n", c.Str)
		}
	}
}
