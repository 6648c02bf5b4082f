package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/geolab/lake-stager/file"
	"github.com/geolab/lake-stager/operations"
	"github.com/geolab/lake-stager/provenance"
)

const (
	OutputDirFlag = "output-dir"
	OutputDirKey  = "OUTPUT_DIR"

	OutputFilePrefix     = "LakeSnapshots_"
	ExportFailureMessage = "Failed exporting staged snapshots"
)

var exportCmd = &cobra.Command{
	Use:   "export [dataset...]",
	Short: "Bundles staged snapshots into a tarball",
	Long:  `Bundles the staged snapshots of the given datasets, with a manifest of checksums and record counts, into a gzipped tarball`,
	RunE:  exportSnapshots,
}

func init() {
	exportCmd.Flags().Bool(AllFlag, false, "Export every configured dataset")
	bindFlagAndEnvVar(exportCmd.Flags(), OutputDirFlag, OutputDirFlag, "", fmt.Sprintf("Local directory to write the bundle to [$%s]", OutputDirKey), OutputDirKey)
	rootCmd.AddCommand(exportCmd)
}

func exportSnapshots(c *cobra.Command, args []string) error {
	if err := verifyRequiredConfig(OutputDirFlag); err != nil {
		return err
	}
	all, _ := c.Flags().GetBool(AllFlag)
	if len(args) == 0 && !all {
		return errors.New(NoDatasetsMessage)
	}

	c.SilenceUsage = true

	app, err := loadApp()
	if err != nil {
		return err
	}
	descriptors, err := app.datasets(args, all)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}

	now := time.Now()
	bundlePath := filepath.Join(
		viper.GetString(OutputDirFlag),
		fmt.Sprintf("%s%s.tar.gz", OutputFilePrefix, provenance.Timestamp(now)),
	)
	bundle, err := file.NewBundleWriter(app.fs, bundlePath, now)
	if err != nil {
		return err
	}

	exporter := operations.NewExporter(app.registry, file.NewReader(app.fs, app.cfg.StagingRoot), func() time.Time { return now })
	manifest, err := exporter.Export(bundle, names)
	if closeErr := bundle.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		app.fs.Remove(bundlePath)
		return errors.Wrap(err, ExportFailureMessage)
	}

	app.logger.Debug().Str("collection_id", manifest.CollectionID).Int("files", len(manifest.Files)).Msg("exported snapshots")
	fmt.Printf("Wrote output to %s\n", bundlePath)
	fmt.Println("Success!")
	return nil
}
