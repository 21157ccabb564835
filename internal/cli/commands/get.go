package commands

import (
	"github.com/spf13/cobra"

	"github.com/textpool/textpool/internal/cliopt"
	"github.com/textpool/textpool/internal/cliutil"
	tperrors "github.com/textpool/textpool/textpool/errors"
	"github.com/textpool/textpool/textpool/schema"
	"github.com/textpool/textpool/textpool/storage"
)

func NewGetCmd(g *cliopt.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <pool.source> <id>",
		Short: "Print the row with the given identifier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := cliutil.ParseTarget(args[0])
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.Pool(t.Pool)
			if err != nil {
				return err
			}
			src, ok := p.Info().Source(t.Source)
			if !ok {
				return tperrors.NotFound("source " + t.Source + " in pool " + t.Pool)
			}
			tbl, ok := p.Store().Table(schema.NormalizeSource(src.Name))
			if !ok {
				return tperrors.NotFound("table for " + src.Name)
			}
			rows := p.Store().Select(cmd.Context(), tbl.Name, storage.Where{tbl.PrimaryKey: {args[1]}}, storage.SelectOptions{Limit: 1})
			if len(rows) == 0 {
				return tperrors.NotFound("row " + args[1] + " in " + t.String())
			}
			if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
				cliutil.PrintJSON(cmd.OutOrStdout(), rows[0])
				return nil
			}
			cliutil.PrintRows(cmd.OutOrStdout(), rows)
			return nil
		},
	}
}
