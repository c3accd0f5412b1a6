// Command lcrctl runs the LCR report pipeline from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/lcrdash/internal/app"
	"github.com/MrJamesThe3rd/lcrdash/internal/config"
	"github.com/MrJamesThe3rd/lcrdash/internal/logging"
	"github.com/MrJamesThe3rd/lcrdash/internal/report"
)

var (
	verbose bool
	pretty  bool

	application *app.App
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "lcrctl",
		Short:         "Merge LCR extracts into the base report and manage snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			level := "warn"
			if verbose {
				level = "debug"
			}

			logger, err := logging.New(logging.Config{Level: level, Format: "console"})
			if err != nil {
				return err
			}

			application, err = app.New(cfg, logger)

			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if application != nil {
				_ = application.Logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline steps to stderr")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")

	rootCmd.AddCommand(
		newMergeCmd(),
		newIngestCmd(),
		newDatesCmd(),
		newLatestCmd(),
		newTemplateCmd(),
		newInspectCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", report.Code(err), err)

		if application != nil {
			application.Logger.Debug("command failed", zap.Error(err))
		}

		os.Exit(1)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}

	return enc.Encode(v)
}
