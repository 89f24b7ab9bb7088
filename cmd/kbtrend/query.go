package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tordrt/kbtrend"
	"github.com/tordrt/kbtrend/internal/model"
)

func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Manage search queries",
	}
	cmd.AddCommand(newQueryAddCmd(a), newQueryListCmd(a), newQueryRmCmd(a))
	return cmd
}

func newQueryAddCmd(a *app) *cobra.Command {
	var (
		search   string
		keyword  string
		metadata string
		ensure   bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a (search string, keyword) query",
		Example: `  kbtrend query add --search cats --keyword feline
  kbtrend query add --search "katt*" --keyword feline --metadata '{"lang":"sv"}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := model.Query{SearchString: search, Keyword: keyword}
			if metadata != "" {
				q.Metadata = json.RawMessage(metadata)
			}

			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				add := st.CreateQuery
				if ensure {
					add = st.EnsureQuery
				}
				created, err := add(cmd.Context(), q)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return printJSON(cmd.OutOrStdout(), created)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), created.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "search string sent to the search service")
	cmd.Flags().StringVar(&keyword, "keyword", "", "keyword grouping related search strings")
	cmd.Flags().StringVar(&metadata, "metadata", "", "JSON metadata to attach")
	cmd.Flags().BoolVar(&ensure, "ensure", false, "return the existing query instead of failing on a duplicate")
	return cmd
}

func newQueryListCmd(a *app) *cobra.Command {
	var keyword string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				queries, err := st.ListQueries(cmd.Context(), keyword)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					if queries == nil {
						queries = []model.Query{}
					}
					return printJSON(cmd.OutOrStdout(), queries)
				}

				rows := make([][]string, len(queries))
				for i, q := range queries {
					meta := "-"
					if len(q.Metadata) > 0 {
						meta = string(q.Metadata)
					}
					rows[i] = []string{strconv.FormatInt(q.ID, 10), q.SearchString, q.Keyword, meta}
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "SEARCH", "KEYWORD", "METADATA"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&keyword, "keyword", "", "only queries with this keyword")
	return cmd
}

func newQueryRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a query with its counts and queue items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid query id %q", args[0])
			}
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				if err := st.DeleteQuery(cmd.Context(), id); err != nil {
					return err
				}
				a.logger.Info("query deleted", "query_id", id)
				return nil
			})
		},
	}
}
