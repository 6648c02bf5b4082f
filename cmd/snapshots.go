package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/geolab/lake-stager/file"
	"github.com/geolab/lake-stager/lag"
)

const NoSnapshotsFormat = "No staged snapshots for %s"

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots <dataset>",
	Short: "Lists staged snapshots of a dataset",
	Long:  `Lists the staged snapshots of a dataset, oldest first, optionally only those for one target date`,
	Args:  cobra.ExactArgs(1),
	RunE:  listSnapshots,
}

func init() {
	addTargetDateFlags(snapshotsCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func listSnapshots(c *cobra.Command, args []string) error {
	date, lagMonths, err := targetDateFlags(c)
	if err != nil {
		return err
	}

	c.SilenceUsage = true

	app, err := loadApp()
	if err != nil {
		return err
	}
	d, err := app.registry.Lookup(args[0])
	if err != nil {
		return err
	}
	if lagMonths != nil {
		if date, err = lag.Date(*lagMonths, time.Now().UTC()); err != nil {
			return err
		}
	}
	filtered := date != "" || lagMonths != nil

	reader := file.NewReader(app.fs, app.cfg.StagingRoot)
	staged, err := reader.List(d)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FETCHED\tTARGET DATE\tRECORDS\tPATH")
	var listed int
	for _, sf := range staged {
		if filtered && sf.DateSuffix != file.DateSuffix(date) {
			continue
		}
		env, err := reader.Load(sf.Path)
		if err != nil {
			return err
		}
		target := env.Metadata.Target()
		if target == "" {
			target = "latest"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", env.Metadata.FetchTimestamp, target, env.Metadata.RecordCount, sf.Path)
		listed++
	}
	if listed == 0 {
		return errors.Errorf(NoSnapshotsFormat, d.Name)
	}
	return w.Flush()
}
