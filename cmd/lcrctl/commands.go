package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/MrJamesThe3rd/lcrdash/internal/merge"
	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

func newMergeCmd() *cobra.Command {
	var (
		templatePath string
		outPath      string
		dateFlag     string
		recalculate  bool
	)

	cmd := &cobra.Command{
		Use:   "merge <extract.xlsx>",
		Short: "Merge an extract into the base template without touching the history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			extract := args[0]

			date, err := pickDate(extract, dateFlag)
			if err != nil {
				return err
			}

			if templatePath == "" {
				if templatePath, err = application.Locator.Resolve(ctx); err != nil {
					return err
				}
			}

			if outPath == "" {
				outPath = report.Key(date) + ".xlsx"
			}

			target := outPath
			if recalculate {
				work, err := os.MkdirTemp("", "lcrctl-*")
				if err != nil {
					return err
				}
				defer os.RemoveAll(work)

				target = filepath.Join(work, "merged.xlsx")
			}

			res, err := application.Engine.Merge(ctx, extract, templatePath, date, target)
			if err != nil {
				return err
			}

			if recalculate {
				if err := application.Recalc.Recalculate(ctx, target, outPath); err != nil {
					return err
				}
			}

			for _, w := range res.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}

			return printJSON(cmd, map[string]any{
				"date":     report.Key(date),
				"template": templatePath,
				"output":   outPath,
				"rows":     res.Rows,
				"columns":  res.Columns,
				"warnings": res.Warnings,
			})
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Base template (default: resolved like the server)")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output workbook (default: <date>.xlsx)")
	cmd.Flags().StringVar(&dateFlag, "date", "", "Report date YYYY-MM-DD (default: from the file name)")
	cmd.Flags().BoolVar(&recalculate, "recalc", false, "Run the configured recalculation backend on the result")

	return cmd
}

func pickDate(extract, flag string) (time.Time, error) {
	if flag != "" {
		return report.ParseKey(flag)
	}

	return report.ParseFilenameDate(extract)
}

func newIngestCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "ingest <extract.xlsx>",
		Short: "Run an extract through the full pipeline and publish it as a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			if name == "" {
				name = filepath.Base(args[0])
			}

			snap, err := application.Ingest.Ingest(cmd.Context(), f, name)
			if err != nil {
				return err
			}

			return printJSON(cmd, snap)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Name to ingest the file under (default: its base name)")

	return cmd
}

func newDatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dates",
		Short: "List stored report dates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dates, err := application.Snapshots.Dates(cmd.Context())
			if err != nil {
				return err
			}

			return printJSON(cmd, dates)
		},
	}
}

func newLatestCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the latest snapshot, or the one for --date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			view, err := application.Snapshots.View(cmd.Context(), date)
			if err != nil {
				return err
			}

			return printJSON(cmd, view)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Report date YYYY-MM-DD")

	return cmd
}

func newTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template",
		Short: "Show which base template a merge would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := application.Locator.Resolve(cmd.Context())
			if err != nil {
				return err
			}

			return printJSON(cmd, map[string]any{
				"path":    path,
				"sources": application.Locator.Names(),
			})
		},
	}
}

func newInspectCmd() *cobra.Command {
	var sheet string

	cmd := &cobra.Command{
		Use:   "inspect <workbook.xlsx>",
		Short: "Print a sheet as tab-separated formatted values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := excelize.OpenFile(args[0])
			if err != nil {
				return fmt.Errorf("%w: %v", report.ErrUnsupportedFormat, err)
			}
			defer f.Close()

			if sheet == "" {
				sheet = f.GetSheetName(f.GetActiveSheetIndex())
			}

			rows, err := merge.ReadFormatted(f, sheet)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, row := range rows {
				fmt.Fprintln(out, strings.Join(row, "\t"))
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&sheet, "sheet", "s", "", "Sheet name (default: the active sheet)")

	return cmd
}
