package cmd

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/geolab/lake-stager/lag"
)

const (
	MonthsFlag    = "months"
	ReferenceFlag = "reference"

	InvalidReferenceFormat = "Invalid reference date %q. Use YYYY-MM-DD"
)

var lagDateCmd = &cobra.Command{
	Use:   "lag-date",
	Short: "Prints the lagged target date",
	Long:  `Prints the date a number of 30-day months before the reference date, in the format --date accepts`,
	Args:  cobra.NoArgs,
	RunE:  printLagDate,
}

func init() {
	lagDateCmd.Flags().Int(MonthsFlag, lag.DefaultMonths, "Number of 30-day months to go back")
	lagDateCmd.Flags().String(ReferenceFlag, "", "Reference date, YYYY-MM-DD (default: today, UTC)")
	rootCmd.AddCommand(lagDateCmd)
}

func printLagDate(c *cobra.Command, _ []string) error {
	months, _ := c.Flags().GetInt(MonthsFlag)
	reference := time.Now().UTC()
	if value, _ := c.Flags().GetString(ReferenceFlag); value != "" {
		parsed, err := time.Parse(lag.DateLayout, value)
		if err != nil {
			return errors.Errorf(InvalidReferenceFormat, value)
		}
		reference = parsed
	}

	date, err := lag.Date(months, reference)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.OutOrStdout(), date)
	return nil
}
