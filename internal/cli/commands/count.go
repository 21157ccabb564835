package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/textpool/textpool/internal/cliopt"
	"github.com/textpool/textpool/internal/cliutil"
	"github.com/textpool/textpool/textpool"
)

func NewCountCmd(g *cliopt.GlobalOptions) *cobra.Command {
	var (
		in       string
		semantic bool
	)
	cmd := &cobra.Command{
		Use:   "count <query>...",
		Short: "Count the rows matching a query and the pages they fill",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			c, err := s.PageCount(cmd.Context(), textpool.PageQuery{
				Target:   cliutil.ParseTarget(in),
				Query:    strings.Join(args, " "),
				Semantic: semantic,
			})
			if err != nil {
				return err
			}
			if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
				cliutil.PrintJSON(cmd.OutOrStdout(), c)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows, %d pages\n", c.Count, c.Pages)
			if len(c.Highlights) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "highlight: %s\n", strings.Join(c.Highlights, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "target as <pool> or <pool>.<source> (default: selected)")
	cmd.Flags().BoolVar(&semantic, "semantic", false, "use semantic search when configured")
	return cmd
}
