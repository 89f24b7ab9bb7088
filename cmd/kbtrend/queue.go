package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tordrt/kbtrend"
	"github.com/tordrt/kbtrend/internal/model"
	"github.com/tordrt/kbtrend/internal/store"
)

func newQueueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the scrape work queue",
	}
	cmd.AddCommand(
		newQueueAddCmd(a),
		newQueueListCmd(a),
		newQueueDoneCmd(a),
		newQueueFailCmd(a),
		newQueueStatsCmd(a),
	)
	return cmd
}

func newQueueAddCmd(a *app) *cobra.Command {
	var item model.QueueItem

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Queue a (query, journal, year) unit of work",
		Example: `  kbtrend queue add --query 1 --journal 1
  kbtrend queue add --query 1 --journal 1 --year 2020`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				queued, err := st.Enqueue(cmd.Context(), item)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return printJSON(cmd.OutOrStdout(), queued)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), queued.ID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&item.QueryID, "query", 0, "query id")
	cmd.Flags().Int64Var(&item.JournalID, "journal", 0, "journal id")
	cmd.Flags().StringVar(&item.Year, "year", model.YearAll, `year to scrape, or "all"`)
	cmd.Flags().StringVar(&item.Status, "status", model.StatusPending, "initial status")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("journal")
	return cmd
}

func newQueueListCmd(a *app) *cobra.Command {
	var f store.QueueFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				items, err := st.ListQueue(cmd.Context(), f)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					if items == nil {
						items = []model.QueueItem{}
					}
					return printJSON(cmd.OutOrStdout(), items)
				}

				rows := make([][]string, len(items))
				for i, item := range items {
					completed := "-"
					if item.CompletedAt != nil {
						completed = item.CompletedAt.Format("2006-01-02 15:04:05")
					}
					rows[i] = []string{
						strconv.FormatInt(item.ID, 10),
						strconv.FormatInt(item.QueryID, 10),
						strconv.FormatInt(item.JournalID, 10),
						item.Year,
						orDash(&item.Status),
						completed,
						orDash(item.ErrorMessage),
					}
				}
				return printTable(cmd.OutOrStdout(),
					[]string{"ID", "QUERY", "JOURNAL", "YEAR", "STATUS", "COMPLETED", "ERROR"}, rows)
			})
		},
	}

	cmd.Flags().StringVar(&f.Status, "status", "", "only items with this status")
	cmd.Flags().Int64Var(&f.QueryID, "query", 0, "only this query id")
	cmd.Flags().Int64Var(&f.JournalID, "journal", 0, "only this journal id")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum number of results (0 = no limit)")
	return cmd
}

func newQueueDoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done ID",
		Short: "Mark a queue item completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid queue id %q", args[0])
			}
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				item, err := st.CompleteQueueItem(cmd.Context(), id)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return printJSON(cmd.OutOrStdout(), item)
				}
				return nil
			})
		},
	}
}

func newQueueFailCmd(a *app) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "fail ID",
		Short: "Mark a queue item failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid queue id %q", args[0])
			}
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				item, err := st.FailQueueItem(cmd.Context(), id, message)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return printJSON(cmd.OutOrStdout(), item)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "error message to record")
	return cmd
}

func newQueueStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count queue items per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				counts, err := st.QueueStatusCounts(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return printJSON(cmd.OutOrStdout(), counts)
				}

				statuses := make([]string, 0, len(counts))
				for status := range counts {
					statuses = append(statuses, status)
				}
				sort.Strings(statuses)

				rows := make([][]string, len(statuses))
				for i, status := range statuses {
					rows[i] = []string{orDash(&status), strconv.Itoa(counts[status])}
				}
				return printTable(cmd.OutOrStdout(), []string{"STATUS", "ITEMS"}, rows)
			})
		},
	}
}
