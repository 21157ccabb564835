package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/textpool/textpool/internal/cliopt"
	"github.com/textpool/textpool/internal/cliutil"
)

func NewIndexCmd(g *cliopt.GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create, inspect and maintain pools",
	}
	cmd.AddCommand(
		newIndexCreateCmd(g),
		newIndexListCmd(g),
		newIndexSchemaCmd(g),
		newIndexRebuildCmd(g),
		newIndexCheckCmd(g),
	)
	return cmd
}

func newIndexCreateCmd(g *cliopt.GlobalOptions) *cobra.Command {
	var infoPath, sourcesDir string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Build a pool from a definition file and a directory of source files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := cliutil.LoadInfo(*g, infoPath)
			if err != nil {
				return err
			}
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			err = s.CreatePool(cmd.Context(), info, sourcesDir, func(pct int) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\r%3d%%", pct)
			})
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created pool %s (%d sources, storage %s)\n", info.Name, len(info.Sources), info.StorageType)
			return nil
		},
	}
	cmd.Flags().StringVar(&infoPath, "info", "", "pool definition (.json, .yaml or .yml)")
	cmd.Flags().StringVar(&sourcesDir, "sources", ".", "directory holding the source files")
	_ = cmd.MarkFlagRequired("info")
	return cmd
}

func newIndexListCmd(g *cliopt.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List loaded pools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			infos := s.Infos()
			if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
				names := make([]string, len(infos))
				for i, info := range infos {
					names[i] = info.Name
				}
				cliutil.PrintJSON(cmd.OutOrStdout(), names)
				return nil
			}
			for _, info := range infos {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d sources\n", info.Name, len(info.Sources))
			}
			return nil
		},
	}
}

func newIndexSchemaCmd(g *cliopt.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <pool>",
		Short: "Print the definition of a pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.Pool(args[0])
			if err != nil {
				return err
			}
			cliutil.PrintJSON(cmd.OutOrStdout(), p.Info())
			return nil
		},
	}
}

func newIndexRebuildCmd(g *cliopt.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <pool>",
		Short: "Rebuild the full-text index of a pool from its stored rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			err = s.RebuildPool(cmd.Context(), args[0], func(pct int) {
				fmt.Fprintf(cmd.ErrOrStderr(), "\r%3d%%", pct)
			})
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %s\n", args[0])
			return nil
		},
	}
}

func newIndexCheckCmd(g *cliopt.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <pool>",
		Short: "Verify the on-disk index of a pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.CheckPool(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
}
