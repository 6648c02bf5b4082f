package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/geolab/lake-stager/failures"
	"github.com/geolab/lake-stager/fetch"
	"github.com/geolab/lake-stager/file"
	"github.com/geolab/lake-stager/network"
	"github.com/geolab/lake-stager/operations"
	"github.com/geolab/lake-stager/registry"
)

const (
	ConfigKey       = "LAKE_STAGER_CONFIG"
	StagingRootKey  = "STAGING_ROOT"
	TimeoutKey      = "REQUEST_TIMEOUT"
	ProxyURLKey     = "LAKE_STAGER_PROXY_URL"
	LogLevelKey     = "LOG_LEVEL"
	SkipExistingKey = "SKIP_EXISTING"

	ConfigFlag        = "config"
	StagingRootFlag   = "staging-root"
	TimeoutFlag       = "timeout"
	SkipTlsVerifyFlag = "insecure-skip-tls-verify"
	ProxyURLFlag      = "proxy-url"
	LogLevelFlag      = "log-level"
	SkipExistingFlag  = "skip-existing"

	RequiredConfigErrorFormat = "Missing required flags: %s"
	InvalidLogLevelFormat     = "Invalid log level %q"
	ReadConfigErrorFormat     = "Failed reading configuration file %s"
	HTTPClientErrorMessage    = "Failed creating HTTP client"
	toolName                  = "lake-stager"
)

var (
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   toolName,
		Short: "Utility for staging dataset snapshots into a local data lake",
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	bindFlagAndEnvVar(flags, ConfigFlag, ConfigFlag, "", fmt.Sprintf("Dataset configuration file, YAML or JSON [$%s]", ConfigKey), ConfigKey)
	bindFlagAndEnvVar(flags, StagingRootFlag, "staging_root", registry.DefaultStagingRoot, fmt.Sprintf("Root directory of the staging area [$%s]", StagingRootKey), StagingRootKey)
	bindFlagAndEnvVar(flags, TimeoutFlag, "timeout_seconds", registry.DefaultTimeoutSeconds, fmt.Sprintf("Timeout (in seconds) for upstream HTTP requests [$%s]", TimeoutKey), TimeoutKey)
	bindFlagAndEnvVar(flags, ProxyURLFlag, "proxy_url", "", fmt.Sprintf("Proxy for upstream HTTP requests [$%s]", ProxyURLKey), ProxyURLKey)
	bindFlagAndEnvVar(flags, LogLevelFlag, "log_level", zerolog.InfoLevel.String(), fmt.Sprintf("Log level: debug, info, warn or error [$%s]", LogLevelKey), LogLevelKey)
	bindFlagAndEnvVar(flags, SkipExistingFlag, "skip_existing", false, fmt.Sprintf("Skip fetches whose dataset and date are already staged [$%s]", SkipExistingKey), SkipExistingKey)
	bindFlagAndEnvVar(flags, SkipTlsVerifyFlag, "insecure_skip_tls_verify", false, "Skip TLS validation on upstream HTTP requests", "")
}

func Execute() {
	rootCmd.Version = version
	rootCmd.Flags().BoolP("help", "h", false, fmt.Sprintf("Help for %s", toolName))
	rootCmd.Flags().BoolP("version", "v", false, fmt.Sprintf("Version for %s", toolName))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func verifyRequiredConfig(keys ...string) error {
	var missingFlags []string
	for _, k := range keys {
		if viper.GetString(k) == "" {
			missingFlags = append(missingFlags, "--"+k)
		}
	}

	if len(missingFlags) > 0 {
		return errors.Errorf(RequiredConfigErrorFormat, strings.Join(missingFlags, ", "))
	}

	return nil
}

func bindFlagAndEnvVar(flags *pflag.FlagSet, flagName, configKey string, defaultValue interface{}, usageText, envKey string) {
	switch val := defaultValue.(type) {
	case string:
		flags.String(flagName, val, usageText)
	case int:
		flags.Int(flagName, val, usageText)
	case bool:
		flags.Bool(flagName, val, usageText)
	}
	viper.BindPFlag(configKey, flags.Lookup(flagName))
	if envKey != "" {
		viper.BindEnv(configKey, envKey)
	}
}

// stagingApp is everything a command needs, built from the configuration file
// merged with flags and environment.
type stagingApp struct {
	cfg      registry.Config
	registry *registry.Registry
	logger   zerolog.Logger
	fs       afero.Fs
}

func newLogger() (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString("log_level")))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.Nop(), errors.Errorf(InvalidLogLevelFormat, viper.GetString("log_level"))
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger(), nil
}

func loadApp() (*stagingApp, error) {
	if err := verifyRequiredConfig(ConfigFlag); err != nil {
		return nil, err
	}
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}

	viper.SetConfigFile(viper.GetString(ConfigFlag))
	if err := viper.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, ReadConfigErrorFormat, viper.GetString(ConfigFlag))
	}
	cfg, err := registry.FromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	reg, err := registry.NewRegistry(cfg)
	if err != nil {
		return nil, err
	}

	logger.Debug().Str("config", viper.ConfigFileUsed()).Strs("datasets", reg.Names()).Msg("loaded configuration")
	return &stagingApp{cfg: cfg, registry: reg, logger: logger, fs: afero.NewOsFs()}, nil
}

func (a *stagingApp) stager() (*operations.Stager, error) {
	client, err := network.NewClient(network.Options{
		SkipTLSVerification: viper.GetBool("insecure_skip_tls_verify"),
		Timeout:             time.Duration(a.cfg.TimeoutSeconds) * time.Second,
		ProxyURL:            a.cfg.ProxyURL,
		RequestsPerSecond:   a.cfg.RequestsPerSecond,
	})
	if err != nil {
		return nil, errors.Wrap(err, HTTPClientErrorMessage)
	}

	return operations.NewStager(
		a.registry,
		fetch.NewExecutor(client, network.NewAuthorizer(client), a.logger),
		file.NewWriter(a.fs, a.cfg.StagingRoot),
		file.NewReader(a.fs, a.cfg.StagingRoot),
		failures.NewReporter(a.logger),
		a.logger,
		time.Now,
		a.cfg.SkipExisting,
	), nil
}

func (a *stagingApp) datasets(args []string, all bool) ([]registry.Descriptor, error) {
	names := args
	if all {
		names = a.registry.Names()
	}
	descriptors := make([]registry.Descriptor, 0, len(names))
	for _, name := range names {
		d, err := a.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}
