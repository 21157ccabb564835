package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/textpool/textpool/internal/cliopt"
	"github.com/textpool/textpool/internal/cliutil"
	"github.com/textpool/textpool/textpool"
	"github.com/textpool/textpool/textpool/storage"
)

func NewSearchCmd(g *cliopt.GlobalOptions) *cobra.Command {
	var (
		in       string
		page     int
		order    string
		desc     bool
		semantic bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Print one page of rows matching a query",
		Long: `Print one page of rows matching a query. Arguments are joined with spaces.

Query syntax:
  words                 searched in the default index field
  field:value           search an indexed field, or filter a stored column
  field:"two words"     phrase
  a and b, a or b, not a, (a or b)
  wild*card, singl?     wildcards
  @Source:value         expand to the variants of value
  @Source:link:value    pre-filter through a linked source`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			q := textpool.PageQuery{
				Target:   cliutil.ParseTarget(in),
				Query:    strings.Join(args, " "),
				Semantic: semantic,
				Page:     page,
			}
			if order != "" {
				q.Order = &storage.Order{Column: order, Desc: desc}
			}

			start := time.Now()
			res, err := s.Page(cmd.Context(), q)
			if err != nil {
				return err
			}
			printPage(cmd.OutOrStdout(), cliutil.ParseOutputFormat(g.Format), res, time.Since(start))
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "target as <pool> or <pool>.<source> (default: selected)")
	cmd.Flags().IntVar(&page, "page", 0, "zero based page number")
	cmd.Flags().StringVar(&order, "order", "", "order by column")
	cmd.Flags().BoolVar(&desc, "desc", false, "descending order")
	cmd.Flags().BoolVar(&semantic, "semantic", false, "use semantic search when configured")
	return cmd
}

func printPage(w io.Writer, format cliutil.OutputFormat, res textpool.PageResult, dur time.Duration) {
	if format == cliutil.FormatJSON {
		cliutil.PrintJSON(w, res)
		return
	}
	fmt.Fprintf(w, "Found %d rows in %dms\n\n", len(res.Rows), dur.Milliseconds())
	cliutil.PrintRows(w, res.Rows)

	cols := make([]string, 0, len(res.Links))
	for c := range res.Links {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	for _, c := range cols {
		fmt.Fprintf(w, "\nlinked by %s:\n", c)
		cliutil.PrintRows(w, res.Links[c])
	}
}
