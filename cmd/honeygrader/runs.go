package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	runsLimit  int
	exportPath string
)

// RunsCmd lists recorded training runs
var RunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded training runs",
	Long:  "Shows the most recent training runs from the run history store, newest first, or exports all of them to CSV",
	RunE:  runRuns,
}

func init() {
	RunsCmd.Flags().IntVar(&runsLimit, "limit", 10, "Maximum number of runs to show (0 for all)")
	RunsCmd.Flags().StringVar(&exportPath, "export", "", "Write all runs to this CSV file")
}

func runRuns(cmd *cobra.Command, args []string) error {
	if settings.StorePath == "" {
		return errors.New("no run history configured, set STORE_PATH or system.storePath")
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if exportPath != "" {
		if err := store.ExportRunsToCSV(exportPath); err != nil {
			return err
		}
		log.Info().Str("file", exportPath).Msg("Runs exported")
		return nil
	}

	runs, err := store.ListRuns(runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tDATA\tROWS\tTRAIN/TEST\tCRITERION\tACCURACY\tMACRO F1\tDEPTH")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d/%d\t%s\t%.2f\t%.2f\t%d\n",
			shortID(r.ID), r.StartedAt.Local().Format(time.DateTime), r.DataPath, r.Rows,
			r.TrainRows, r.TestRows, r.Criterion, r.Accuracy, r.MacroF1, r.TreeDepth)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
