package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/textpool/textpool/internal/cliopt"
	"github.com/textpool/textpool/internal/cliutil"
)

func NewDeleteCmd(g *cliopt.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <pool>",
		Short: "Delete a pool with its storage and index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.DeletePool(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
