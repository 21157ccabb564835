package cliutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/textpool/textpool/internal/cliopt"
	"github.com/textpool/textpool/textpool"
	"github.com/textpool/textpool/textpool/schema"
	"github.com/textpool/textpool/textpool/storage"
)

type OutputFormat string

const (
	FormatPretty OutputFormat = "pretty"
	FormatJSON   OutputFormat = "json"
)

func ParseOutputFormat(s string) OutputFormat {
	switch OutputFormat(s) {
	case FormatPretty, FormatJSON:
		return OutputFormat(s)
	default:
		return FormatPretty
	}
}

func PrintJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

// PrintRows writes rows as "column: value" blocks with sorted columns.
func PrintRows(w io.Writer, rows []storage.Row) {
	for i, row := range rows {
		if i > 0 {
			fmt.Fprintln(w)
		}
		cols := make([]string, 0, len(row))
		for c := range row {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			fmt.Fprintf(w, "%s: %s\n", c, row[c])
		}
	}
}

// ParseTarget splits "pool" or "pool.source" into a target. Source names may
// themselves contain dots.
func ParseTarget(ref string) textpool.Target {
	pool, source, _ := strings.Cut(ref, ".")
	return textpool.Target{Pool: pool, Source: source}
}

// OpenService creates a service over the data directory and loads its pools.
func OpenService(ctx context.Context, g cliopt.GlobalOptions) (*textpool.Service, error) {
	opts, err := g.ServiceOptions()
	if err != nil {
		return nil, err
	}
	s, err := textpool.NewService(g.DataDir, opts)
	if err != nil {
		return nil, err
	}
	if _, err := s.LoadPools(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// LoadInfo reads a pool definition and applies the --backend flag when the
// file names no storage type.
func LoadInfo(g cliopt.GlobalOptions, path string) (schema.DataInfo, error) {
	info, err := schema.Load(path)
	if err != nil {
		return schema.DataInfo{}, err
	}
	if info.StorageType == "" {
		switch strings.ToLower(g.Backend) {
		case "postgres", "pg":
			info.StorageType = schema.StoragePostgres
		default:
			info.StorageType = schema.StorageSQLite
		}
	}
	return info, nil
}
