package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/textpool/textpool/internal/cliopt"
	"github.com/textpool/textpool/internal/cliutil"
	tperrors "github.com/textpool/textpool/textpool/errors"
	"github.com/textpool/textpool/textpool/schema"
)

func NewDiscoverCmd(g *cliopt.GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Explore searchable sources, fields and values",
	}
	cmd.AddCommand(newDiscoverPoolsCmd(g), newDiscoverFieldsCmd(g), newDiscoverValuesCmd(g))
	return cmd
}

func newDiscoverPoolsCmd(g *cliopt.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pools",
		Short: "List searchable <pool>.<source> targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			targets := s.Pools()
			if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
				cliutil.PrintJSON(cmd.OutOrStdout(), targets)
				return nil
			}
			for _, t := range targets {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

type fieldView struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Indexed bool   `json:"indexed"`
	Link    string `json:"link,omitempty"`
}

func newDiscoverFieldsCmd(g *cliopt.GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fields <pool.source>",
		Short: "List the fields of a source",
		Args:  cobra.ExactArgs(1),
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
			links := p.Links()
			var out []fieldView
			for _, f := range src.Fields {
				q := schema.Qualified(src.Name, f.FieldName())
				v := fieldView{Name: f.FieldName(), Type: string(f.FieldType()), Indexed: p.IsIndexed(q)}
				if to, ok := links[q]; ok {
					v.Link = to
				}
				out = append(out, v)
			}

			if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
				cliutil.PrintJSON(cmd.OutOrStdout(), out)
				return nil
			}
			for _, v := range out {
				line := v.Name + " (" + v.Type + ")"
				if v.Indexed {
					line += " indexed"
				}
				if v.Link != "" {
					line += " -> " + v.Link
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newDiscoverValuesCmd(g *cliopt.GlobalOptions) *cobra.Command {
	var field, prefix string
	cmd := &cobra.Command{
		Use:   "values <pool.source>",
		Short: "Suggest values of a field starting with a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cliutil.OpenService(cmd.Context(), *g)
			if err != nil {
				return err
			}
			defer s.Close()

			values := s.Suggestions(cmd.Context(), cliutil.ParseTarget(args[0]), field, prefix)
			if cliutil.ParseOutputFormat(g.Format) == cliutil.FormatJSON {
				if values == nil {
					values = []string{}
				}
				cliutil.PrintJSON(cmd.OutOrStdout(), values)
				return nil
			}
			for _, v := range values {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "field name")
	cmd.Flags().StringVar(&prefix, "prefix", "", "value prefix")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}
