package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/geolab/lake-stager/operations"
)

const NoSchedulesMessage = "No dataset has a schedule configured"

var watchCmd = &cobra.Command{
	Use:   "watch [dataset...]",
	Short: "Fetches datasets on their configured schedules",
	Long:  `Fetches each dataset on its configured cron schedule until interrupted. Failed fetches are reported and wait for the next scheduled run`,
	RunE:  watch,
}

func init() {
	watchCmd.Flags().Int(LagMonthsFlag, 0, "Target the date this many 30-day months before each run")
	rootCmd.AddCommand(watchCmd)
}

func watch(c *cobra.Command, args []string) error {
	_, lagMonths, err := targetDateFlags(c)
	if err != nil {
		return err
	}

	c.SilenceUsage = true

	app, err := loadApp()
	if err != nil {
		return err
	}
	descriptors, err := app.datasets(args, len(args) == 0)
	if err != nil {
		return err
	}
	stager, err := app.stager()
	if err != nil {
		return err
	}

	scheduler := operations.NewScheduler(stager, app.logger)
	for _, d := range descriptors {
		if d.Schedule == "" {
			if len(args) > 0 {
				return errors.Errorf(operations.NoScheduleErrorFormat, d.Name)
			}
			continue
		}
		if err := scheduler.Add(d, lagMonths); err != nil {
			return err
		}
		app.logger.Info().Str("dataset", d.Name).Str("schedule", d.Schedule).Msg("scheduled")
	}
	if scheduler.Len() == 0 {
		return errors.New(NoSchedulesMessage)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %d datasets\n", scheduler.Len())
	scheduler.Start()
	<-ctx.Done()
	<-scheduler.Stop().Done()
	fmt.Println("Stopped")
	return nil
}
