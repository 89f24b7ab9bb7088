package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tordrt/kbtrend"
	"github.com/tordrt/kbtrend/internal/model"
)

func newMetaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Read and write bookkeeping key/value entries",
	}
	cmd.AddCommand(newMetaGetCmd(a), newMetaSetCmd(a), newMetaListCmd(a))
	return cmd
}

func newMetaGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the value stored under KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				m, err := st.GetMetadata(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return printJSON(cmd.OutOrStdout(), m)
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), m.Value)
				return nil
			})
		},
	}
}

func newMetaSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store VALUE under KEY, replacing any earlier value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				m, err := st.SetMetadata(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return printJSON(cmd.OutOrStdout(), m)
				}
				return nil
			})
		},
	}
}

func newMetaListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every entry by key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				entries, err := st.ListMetadata(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonOutput {
					if entries == nil {
						entries = []model.Metadata{}
					}
					return printJSON(cmd.OutOrStdout(), entries)
				}

				rows := make([][]string, len(entries))
				for i, m := range entries {
					rows[i] = []string{m.Key, m.Value, m.UpdatedAt.Format("2006-01-02 15:04:05")}
				}
				return printTable(cmd.OutOrStdout(), []string{"KEY", "VALUE", "UPDATED"}, rows)
			})
		},
	}
}
