package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/textpool/textpool/internal/cli/commands"
	"github.com/textpool/textpool/internal/cliopt"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := cliopt.DefaultGlobalOptions()
	root := &cobra.Command{
		Use:           "textpool",
		Short:         "Searchable pools of delimited text data",
		Long:          rootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cliopt.BindGlobalFlags(root, &g)
	root.AddCommand(
		commands.NewIndexCmd(&g),
		commands.NewPutCmd(&g),
		commands.NewGetCmd(&g),
		commands.NewDeleteCmd(&g),
		commands.NewSearchCmd(&g),
		commands.NewCountCmd(&g),
		commands.NewDiscoverCmd(&g),
		commands.NewDiffCmd(&g),
		commands.NewServeCmd(&g),
	)
	return root
}

// Execute runs the CLI and returns an exit code.
func Execute(argv []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetArgs(argv)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}
