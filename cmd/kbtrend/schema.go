package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tordrt/kbtrend"
	"github.com/tordrt/kbtrend/internal/schema"
)

// errDrift is returned by verify so the process exits non-zero
var errDrift = errors.New("schema drift detected")

func newMigrateCmd(a *app) *cobra.Command {
	var fresh bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create any missing tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				if fresh {
					if err := st.Drop(cmd.Context()); err != nil {
						return err
					}
				}
				if err := st.Migrate(cmd.Context()); err != nil {
					return err
				}
				a.logger.Info("schema up to date", "dialect", st.Dialect())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "drop every kbtrend table and its rows first")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Compare the live database against the declared schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				problems, err := st.Verify(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if a.jsonOutput {
					if problems == nil {
						problems = []string{}
					}
					if err := printJSON(out, problems); err != nil {
						return err
					}
				} else {
					for _, p := range problems {
						_, _ = fmt.Fprintln(out, p)
					}
				}
				if len(problems) > 0 {
					return fmt.Errorf("%w: %d problem(s)", errDrift, len(problems))
				}
				if !a.jsonOutput {
					_, _ = fmt.Fprintln(out, "schema OK")
				}
				return nil
			})
		},
	}
}

func newDescribeCmd(a *app) *cobra.Command {
	var (
		tables     string
		exclude    string
		format     string
		outputFile string
		outputDir  string
		declared   string
	)

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the live (or declared) schema as text or markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir != "" && outputFile != "" {
				return fmt.Errorf("cannot use both --output-dir and --output flags")
			}

			render := func(s *schema.Schema) error {
				var w io.Writer = cmd.OutOrStdout()
				if outputFile != "" {
					f, err := os.Create(outputFile)
					if err != nil {
						return fmt.Errorf("failed to create output file: %w", err)
					}
					defer func() {
						if err := f.Close(); err != nil {
							a.logger.Warn("failed to close output file", "error", err)
						}
					}()
					w = f
				}
				return kbtrend.FormatSchema(s, &kbtrend.OutputOptions{Writer: w, OutputDir: outputDir, Format: format})
			}

			if declared != "" {
				d, err := schema.ParseDialect(declared)
				if err != nil {
					return err
				}
				return render(kbtrend.DeclaredSchema(d))
			}

			return a.withStore(cmd.Context(), func(st *kbtrend.Store) error {
				s, err := st.Describe(cmd.Context(), parseTableList(tables), parseTableList(exclude))
				if err != nil {
					return err
				}
				return render(s)
			})
		},
	}

	cmd.Flags().StringVarP(&tables, "tables", "t", "", "specific tables (comma-separated)")
	cmd.Flags().StringVarP(&exclude, "exclude", "x", "", "tables to leave out (comma-separated)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or markdown")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "output directory for one file per table")
	cmd.Flags().StringVar(&declared, "declared", "", "describe the declared schema for this dialect instead of a database")
	return cmd
}

func newDDLCmd(a *app) *cobra.Command {
	var dialect string

	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print the CREATE statements for a dialect",
		Long: `Print the statements migrate would run. Without --dialect the
dialect of the configured database URL is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := dialect
			if name == "" {
				kind, _, err := kbtrend.ParseDatabaseURL(a.cfg.DB)
				if err != nil {
					return err
				}
				name = string(kind)
			}
			d, err := schema.ParseDialect(name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, stmt := range schema.CreateStatements(d) {
				_, _ = fmt.Fprintf(out, "%s;\n\n", stmt)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dialect, "dialect", "", "sqlite, postgres or mysql")
	return cmd
}
