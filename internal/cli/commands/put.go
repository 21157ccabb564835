package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/textpool/textpool/internal/cliopt"
	"github.com/textpool/textpool/internal/cliutil"
	tperrors "github.com/textpool/textpool/textpool/errors"
)

func NewPutCmd(g *cliopt.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <pool.source> <file>",
		Short: "Append the rows of a delimited file to a source",
		Long: `Append the rows of a delimited file to a source of an existing pool.
Files ending in .tsv are read tab separated, everything else comma separated.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := cliutil.ParseTarget(args[0])
			if t.Source == "" {
				return tperrors.New(tperrors.ErrConfig, "expected <pool>.<source>, got "+args[0])
			}
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.AppendSource(cmd.Context(), t.Pool, t.Source, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "appended %s to %s\n", args[1], t)
			return nil
		},
	}
}
