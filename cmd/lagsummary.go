package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/geolab/lake-stager/file"
	"github.com/geolab/lake-stager/lag"
	"github.com/geolab/lake-stager/operations"
	"github.com/geolab/lake-stager/registry"
)

const (
	ProcessedRootFlag = "processed-root"
	ProcessedRootKey  = "PROCESSED_ROOT"

	LagSummaryFailureMessage = "Failed summarizing lagged snapshots"
)

var lagSummaryCmd = &cobra.Command{
	Use:   "lag-summary [dataset...]",
	Short: "Summarizes the snapshots staged for the lagged date",
	Long:  `Collects the data of every snapshot staged for the date a number of 30-day months back into one summary file per dataset`,
	RunE:  summarizeLagged,
}

func init() {
	lagSummaryCmd.Flags().Bool(AllFlag, false, "Summarize every configured dataset")
	lagSummaryCmd.Flags().Int(MonthsFlag, lag.DefaultMonths, "Number of 30-day months to go back")
	bindFlagAndEnvVar(lagSummaryCmd.Flags(), ProcessedRootFlag, "processed_root", registry.DefaultProcessedRoot, fmt.Sprintf("Root directory for lag summaries [$%s]", ProcessedRootKey), ProcessedRootKey)
	rootCmd.AddCommand(lagSummaryCmd)
}

func summarizeLagged(c *cobra.Command, args []string) error {
	all, _ := c.Flags().GetBool(AllFlag)
	if len(args) == 0 && !all {
		return errors.New(NoDatasetsMessage)
	}
	months, _ := c.Flags().GetInt(MonthsFlag)

	c.SilenceUsage = true

	app, err := loadApp()
	if err != nil {
		return err
	}
	descriptors, err := app.datasets(args, all)
	if err != nil {
		return err
	}

	summarizer := operations.NewSummarizer(
		app.registry,
		file.NewReader(app.fs, app.cfg.StagingRoot),
		file.NewWriter(app.fs, app.cfg.ProcessedRoot),
		app.logger,
		time.Now,
	)

	var errs error
	for _, d := range descriptors {
		summary, path, err := summarizer.Summarize(d.Name, months)
		if err != nil {
			app.logger.Error().Str("dataset", d.Label).Msg(err.Error())
			errs = multierr.Append(errs, err)
			continue
		}
		app.logger.Info().Str("dataset", d.Label).Int("records", summary.RecordCount).Str("target_date", summary.TargetDate).Msg("summarized lagged snapshots")
		fmt.Printf("Wrote output to %s\n", path)
	}
	if errs != nil {
		return errors.Wrap(errs, LagSummaryFailureMessage)
	}

	fmt.Println("Success!")
	return nil
}
