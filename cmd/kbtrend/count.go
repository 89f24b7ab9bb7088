package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tordrt/kbtrend"
	"github.com/tordrt/kbtrend/internal/model"
	"github.com/tordrt/kbtrend/internal/store"
)

func newCountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Record and list yearly hit counts",
	}
	cmd.AddCommand(newCountSetCmd(a), newCountListCmd(a))
	return cmd
}

func newCountSetCmd(a *app) *cobra.Command {
	var (
		c   model.Count
		rel float64
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Record the hit count for a (year, query, journal) triple",
		Long: `Record the hit count for a (year, query, journal) triple,
replacing any earlier observation of the same triple.`,
		Example: `  kbtrend count set --year 2020 --query 1 --journal 1 --count 5 --rel 0.2`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("rel") {
				c.Rel = &rel
			}
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				saved, err := st.UpsertCount(cmd.Context(), c)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return printJSON(cmd.OutOrStdout(), saved)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), saved.ID)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&c.Year, "year", 0, "publication year")
	cmd.Flags().Int64Var(&c.QueryID, "query", 0, "query id")
	cmd.Flags().Int64Var(&c.JournalID, "journal", 0, "journal id")
	cmd.Flags().IntVar(&c.Count, "count", 0, "number of hits")
	cmd.Flags().Float64Var(&rel, "rel", 0, "relative frequency (omit for none)")
	for _, name := range []string{"year", "query", "journal"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newCountListCmd(a *app) *cobra.Command {
	var f store.CountFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List counts ordered by year, query and journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				counts, err := st.ListCounts(cmd.Context(), f)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					if counts == nil {
						counts = []model.Count{}
					}
					return printJSON(cmd.OutOrStdout(), counts)
				}

				rows := make([][]string, len(counts))
				for i, c := range counts {
					rel := "-"
					if c.Rel != nil {
						rel = strconv.FormatFloat(*c.Rel, 'g', -1, 64)
					}
					rows[i] = []string{
						strconv.FormatInt(c.ID, 10),
						strconv.Itoa(c.Year),
						strconv.FormatInt(c.QueryID, 10),
						strconv.FormatInt(c.JournalID, 10),
						strconv.Itoa(c.Count),
						rel,
					}
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "YEAR", "QUERY", "JOURNAL", "COUNT", "REL"}, rows)
			})
		},
	}

	cmd.Flags().IntVar(&f.Year, "year", 0, "only this year")
	cmd.Flags().Int64Var(&f.QueryID, "query", 0, "only this query id")
	cmd.Flags().Int64Var(&f.JournalID, "journal", 0, "only this journal id")
	return cmd
}
