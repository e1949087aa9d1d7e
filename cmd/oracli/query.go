package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/erikwco/oracli/v3/dynamic"
	"github.com/spf13/cobra"
)

func newQueryCmd(opts *options) *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:   "query SCHEMA TABLE [PK]",
		Short: "print the row with primary key PK, or the rows matching --where, as JSON",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 3 && len(where) > 0 {
				return fmt.Errorf("PK and --where can't be used together")
			}
			filters := make([]dynamic.Filter, 0, len(where))
			for _, w := range where {
				col, val, ok := strings.Cut(w, "=")
				if !ok {
					return fmt.Errorf("--where %q is not COLUMN=VALUE", w)
				}
				filters = append(filters, dynamic.Filter{Column: col, Value: val})
			}

			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, cancel := a.context(cmd.Context())
			defer cancel()

			schema := args[0]
			table, err := a.cache.Get(ctx, schema, args[1])
			if err != nil {
				return err
			}

			var out []byte
			if len(args) == 3 {
				q, err := dynamic.FromPK(schema, table, args[2])
				if err != nil {
					return err
				}
				out, err = q.FetchOne(ctx, a.pool)
				if err != nil {
					return err
				}
			} else {
				q, err := dynamic.FromParams(schema, table, filters)
				if err != nil {
					return err
				}
				out, err = q.FetchMany(ctx, a.pool, a.cfg.Query.FetchBatch)
				if err != nil {
					return err
				}
			}
			cmd.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "COLUMN=VALUE filter, repeatable")
	return cmd
}

func newDescribeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "describe SCHEMA TABLE",
		Short: "print the catalog description of a table as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx, cancel := a.context(cmd.Context())
			defer cancel()

			table, err := a.cache.Get(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(table, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
}
