package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/geolab/lake-stager/operations"
)

const (
	AllFlag       = "all"
	DateFlag      = "date"
	LagMonthsFlag = "lag-months"
	LimitFlag     = "limit"

	NoDatasetsMessage   = "Specify at least one dataset or --all"
	DateAndLagMessage   = "--date and --lag-months cannot be used together"
	InvalidDateFormat   = "Invalid date %q. Use YYYY, YYYY-MM, YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS"
	InvalidLimitMessage = "--limit must be positive"
	FetchFailureMessage = "Failed to stage one or more datasets"
)

var dateLayouts = []string{"2006", "2006-01", "2006-01-02", "2006-01-02T15:04:05"}

var fetchCmd = &cobra.Command{
	Use:   "fetch [dataset...]",
	Short: "Fetches dataset snapshots into the staging area",
	Long:  `Fetches the latest or a dated snapshot of each dataset and stages it with provenance metadata`,
	RunE:  fetchDatasets,
}

func init() {
	fetchCmd.Flags().Bool(AllFlag, false, "Fetch every configured dataset")
	addTargetDateFlags(fetchCmd)
	fetchCmd.Flags().Int(LimitFlag, 0, "Maximum number of records to request, for datasets that support it")
	rootCmd.AddCommand(fetchCmd)
}

func addTargetDateFlags(c *cobra.Command) {
	c.Flags().String(DateFlag, "", "Target date of the snapshot (default: latest)")
	c.Flags().Int(LagMonthsFlag, 0, "Target the date this many 30-day months before now")
}

// targetDateFlags reads --date and --lag-months. A nil lag means no lag was
// requested.
func targetDateFlags(c *cobra.Command) (string, *int, error) {
	date, _ := c.Flags().GetString(DateFlag)
	var lagMonths *int
	if c.Flags().Changed(LagMonthsFlag) {
		months, _ := c.Flags().GetInt(LagMonthsFlag)
		lagMonths = &months
	}

	if date != "" && lagMonths != nil {
		return "", nil, errors.New(DateAndLagMessage)
	}
	if date != "" && !validDate(date) {
		return "", nil, errors.Errorf(InvalidDateFormat, date)
	}
	return date, lagMonths, nil
}

func validDate(date string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, date); err == nil {
			return true
		}
	}
	return false
}

func fetchDatasets(c *cobra.Command, args []string) error {
	all, _ := c.Flags().GetBool(AllFlag)
	if len(args) == 0 && !all {
		return errors.New(NoDatasetsMessage)
	}
	date, lagMonths, err := targetDateFlags(c)
	if err != nil {
		return err
	}
	limit, _ := c.Flags().GetInt(LimitFlag)
	if limit < 0 {
		return errors.New(InvalidLimitMessage)
	}

	c.SilenceUsage = true

	app, err := loadApp()
	if err != nil {
		return err
	}
	stager, err := app.stager()
	if err != nil {
		return err
	}

	names := args
	if all {
		names = app.registry.Names()
	}
	reqs := make([]operations.Request, 0, len(names))
	for _, name := range names {
		reqs = append(reqs, operations.Request{Dataset: name, TargetDate: date, LagMonths: lagMonths, Limit: limit})
	}

	artifacts, err := stager.StageAll(reqs)
	for _, artifact := range artifacts {
		if artifact.Skipped {
			fmt.Printf("Skipped %s, already staged at %s\n", artifact.Dataset, artifact.Path)
			continue
		}
		fmt.Printf("Wrote output to %s\n", artifact.Path)
	}
	if err != nil {
		return errors.Wrap(err, FetchFailureMessage)
	}

	fmt.Println("Success!")
	return nil
}
