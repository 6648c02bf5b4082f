package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const EncodeDatasetsErrorMessage = "Failed printing datasets"

var datasetsCmd = &cobra.Command{
	Use:   "datasets [dataset...]",
	Short: "Prints the configured datasets",
	Long:  `Prints the resolved description of each configured dataset, with defaults applied and credentials omitted`,
	RunE:  printDatasets,
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}

func printDatasets(c *cobra.Command, args []string) error {
	c.SilenceUsage = true

	app, err := loadApp()
	if err != nil {
		return err
	}
	descriptors, err := app.datasets(args, len(args) == 0)
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(c.OutOrStdout())
	encoder.SetIndent(2)
	if err := encoder.Encode(descriptors); err != nil {
		return errors.Wrap(err, EncodeDatasetsErrorMessage)
	}
	return errors.Wrap(encoder.Close(), EncodeDatasetsErrorMessage)
}
