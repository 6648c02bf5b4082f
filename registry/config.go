package registry

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	DefaultTimeoutSeconds = 30
	DefaultStagingRoot    = "data/raw"
	DefaultProcessedRoot  = "data/processed"
	DefaultAPIKeyHeader   = "x-api-key"

	ReadConfigErrorFormat   = "Failed reading configuration file %s"
	DecodeConfigErrorFormat = "Failed decoding configuration from %s"
)

type Config struct {
	StagingRoot       string                   `mapstructure:"staging_root"`
	ProcessedRoot     string                   `mapstructure:"processed_root"`
	TimeoutSeconds    int                      `mapstructure:"timeout_seconds"`
	SkipExisting      bool                     `mapstructure:"skip_existing"`
	ProxyURL          string                   `mapstructure:"proxy_url"`
	RequestsPerSecond float64                  `mapstructure:"requests_per_second"`
	Datasets          map[string]DatasetConfig `mapstructure:"datasets"`
}

type DatasetConfig struct {
	Protocol     string     `mapstructure:"protocol"`
	BaseURL      string     `mapstructure:"base_url"`
	DatasetID    string     `mapstructure:"dataset_id"`
	Endpoint     string     `mapstructure:"endpoint"`
	Directory    string     `mapstructure:"directory"`
	FilePrefix   string     `mapstructure:"file_prefix"`
	DateParam    string     `mapstructure:"date_param"`
	LimitParam   string     `mapstructure:"limit_param"`
	DefaultLimit int        `mapstructure:"default_limit"`
	FilterParam  string     `mapstructure:"filter_param"`
	FilterField  string     `mapstructure:"filter_field"`
	Label        string     `mapstructure:"label"`
	NotFoundHint string     `mapstructure:"not_found_hint"`
	Schedule     string     `mapstructure:"schedule"`
	Auth         AuthConfig `mapstructure:"auth"`
}

// AuthConfig holds upstream credentials exactly as they appear in the
// configuration file. At most one scheme is used, in the order api key, bearer
// token, client credentials.
type AuthConfig struct {
	APIKey       string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	APIKeyHeader string `mapstructure:"api_key_header" yaml:"api_key_header,omitempty"`
	BearerToken  string `mapstructure:"bearer_token" yaml:"bearer_token,omitempty"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id,omitempty"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret,omitempty"`
	TokenURL     string `mapstructure:"token_url" yaml:"token_url,omitempty"`
}

func (a AuthConfig) Empty() bool {
	return a.APIKey == "" && a.BearerToken == "" && a.ClientID == ""
}

// LoadConfig reads a YAML or JSON configuration file into a fresh viper
// instance and decodes it.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrapf(err, ReadConfigErrorFormat, path)
	}
	return FromViper(v)
}

// FromViper decodes a populated viper instance, so values bound from flags and
// environment variables take precedence over the file.
func FromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("staging_root", DefaultStagingRoot)
	v.SetDefault("processed_root", DefaultProcessedRoot)
	v.SetDefault("timeout_seconds", DefaultTimeoutSeconds)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, DecodeConfigErrorFormat, v.ConfigFileUsed())
	}

	datasets := make(map[string]DatasetConfig, len(cfg.Datasets))
	for name, dc := range cfg.Datasets {
		datasets[strings.ToLower(name)] = dc
	}
	cfg.Datasets = datasets
	return cfg, nil
}
