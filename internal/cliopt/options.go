package cliopt

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/textpool/textpool/textpool"
)

// GlobalOptions are bound as persistent flags on the root command and shared
// by every subcommand.
//
// Kept apart from internal/cli so command packages can import it without a
// cycle.
type GlobalOptions struct {
	DataDir     string
	Backend     string
	PostgresDSN string
	LogLevel    string

	Format string
}

func DefaultGlobalOptions() GlobalOptions {
	dsn := os.Getenv("TEXTPOOL_PG_DSN")
	return GlobalOptions{
		DataDir:     "pools",
		Backend:     "sqlite",
		PostgresDSN: dsn,
		LogLevel:    "warn",
		Format:      "pretty",
	}
}

func BindGlobalFlags(cmd *cobra.Command, g *GlobalOptions) {
	f := cmd.PersistentFlags()
	f.StringVar(&g.DataDir, "data-dir", g.DataDir, "directory holding the pools")
	f.StringVar(&g.Backend, "backend", g.Backend, "storage backend for new pools: sqlite|postgres")
	f.StringVar(&g.PostgresDSN, "pg-dsn", g.PostgresDSN, "postgres DSN (default $TEXTPOOL_PG_DSN)")
	f.StringVar(&g.LogLevel, "log-level", g.LogLevel, "log level: debug|info|warn|error")
	f.StringVar(&g.Format, "format", g.Format, "output format: pretty|json")
}

// Logger builds a text logger on stderr at the configured level.
func (g GlobalOptions) Logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(g.LogLevel))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", g.LogLevel)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// ServiceOptions translates the flags into service options.
func (g GlobalOptions) ServiceOptions() (textpool.ServiceOptions, error) {
	log, err := g.Logger()
	if err != nil {
		return textpool.ServiceOptions{}, err
	}
	opts := textpool.DefaultServiceOptions()
	opts.Logger = log
	opts.PostgresDSN = g.PostgresDSN
	return opts, nil
}
