package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tordrt/kbtrend"
	"github.com/tordrt/kbtrend/internal/model"
)

func newJournalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Manage journals",
	}
	cmd.AddCommand(newJournalAddCmd(a), newJournalListCmd(a), newJournalRmCmd(a))
	return cmd
}

func newJournalAddCmd(a *app) *cobra.Command {
	var ensure bool

	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add a journal",
		Long: `Add a journal. A name that is already taken is an error unless
--ensure is given, in which case the existing journal is returned.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				add := st.CreateJournal
				if ensure {
					add = st.EnsureJournal
				}
				j, err := add(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return printJSON(cmd.OutOrStdout(), j)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), j.ID)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&ensure, "ensure", false, "return the existing journal instead of failing on a duplicate name")
	return cmd
}

func newJournalListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List journals by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				journals, err := st.ListJournals(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonOutput {
					if journals == nil {
						journals = []model.Journal{}
					}
					return printJSON(cmd.OutOrStdout(), journals)
				}

				rows := make([][]string, len(journals))
				for i, j := range journals {
					rows[i] = []string{strconv.FormatInt(j.ID, 10), j.Name}
				}
				return printTable(cmd.OutOrStdout(), []string{"ID", "NAME"}, rows)
			})
		},
	}
}

func newJournalRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID|NAME",
		Short: "Delete a journal with its counts and queue items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					j, err := st.GetJournalByName(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					id = j.ID
				}
				if err := st.DeleteJournal(cmd.Context(), id); err != nil {
					return err
				}
				a.logger.Info("journal deleted", "journal_id", id)
				return nil
			})
		},
	}
}
