package registry

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/geolab/lake-stager/failures"
)

type Protocol string

const (
	DirectGet        Protocol = "direct_get"
	PollThenDownload Protocol = "poll_then_download"

	DatasetIDPlaceholder = "{dataset_id}"
	PollDownloadSuffix   = "poll-download"

	UnsupportedProtocolErrorFormat = "dataset %s: unsupported protocol %q (expected %s or %s)"
	MissingEndpointErrorFormat     = "dataset %s: either endpoint or base_url is required"
	MissingDatasetIDErrorFormat    = "dataset %s: endpoint template uses %s but dataset_id is empty"
	MissingFilterFieldErrorFormat  = "dataset %s: filter_param requires filter_field"
	NegativeLimitErrorFormat       = "dataset %s: default_limit must be non-negative"
	NoDatasetsError                = "configuration declares no datasets"
)

// Descriptor is the static description of one upstream dataset.
type Descriptor struct {
	Name             string     `yaml:"name"`
	Protocol         Protocol   `yaml:"protocol"`
	EndpointTemplate string     `yaml:"endpoint_template"`
	DatasetID        string     `yaml:"dataset_id,omitempty"`
	Directory        string     `yaml:"directory"`
	FilePrefix       string     `yaml:"file_prefix"`
	DateParam        string     `yaml:"date_param,omitempty"`
	LimitParam       string     `yaml:"limit_param,omitempty"`
	DefaultLimit     int        `yaml:"default_limit,omitempty"`
	FilterParam      string     `yaml:"filter_param,omitempty"`
	FilterField      string     `yaml:"filter_field,omitempty"`
	Label            string     `yaml:"label"`
	NotFoundHint     string     `yaml:"not_found_hint,omitempty"`
	Schedule         string     `yaml:"schedule,omitempty"`
	Auth             AuthConfig `yaml:"-"`
}

// Endpoint is the template with the dataset id substituted.
func (d Descriptor) Endpoint() string {
	return strings.ReplaceAll(d.EndpointTemplate, DatasetIDPlaceholder, d.DatasetID)
}

type Registry struct {
	descriptors map[string]Descriptor
}

func NewRegistry(cfg Config) (*Registry, error) {
	if len(cfg.Datasets) == 0 {
		return nil, errors.New(NoDatasetsError)
	}

	r := &Registry{descriptors: make(map[string]Descriptor, len(cfg.Datasets))}
	for name, dc := range cfg.Datasets {
		d, err := newDescriptor(strings.ToLower(name), dc)
		if err != nil {
			return nil, err
		}
		r.descriptors[d.Name] = d
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (Descriptor, error) {
	d, ok := r.descriptors[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Descriptor{}, failures.NewUnknownDatasetError(name)
	}
	return d, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newDescriptor(name string, dc DatasetConfig) (Descriptor, error) {
	protocol := Protocol(strings.ToLower(strings.TrimSpace(dc.Protocol)))
	if protocol != DirectGet && protocol != PollThenDownload {
		return Descriptor{}, errors.Errorf(UnsupportedProtocolErrorFormat, name, dc.Protocol, DirectGet, PollThenDownload)
	}

	template, err := endpointTemplate(name, protocol, dc)
	if err != nil {
		return Descriptor{}, err
	}
	if dc.FilterParam != "" && dc.FilterField == "" {
		return Descriptor{}, errors.Errorf(MissingFilterFieldErrorFormat, name)
	}
	if dc.DefaultLimit < 0 {
		return Descriptor{}, errors.Errorf(NegativeLimitErrorFormat, name)
	}

	auth := dc.Auth
	if auth.APIKey != "" && auth.APIKeyHeader == "" {
		auth.APIKeyHeader = DefaultAPIKeyHeader
	}

	return Descriptor{
		Name:             name,
		Protocol:         protocol,
		EndpointTemplate: template,
		DatasetID:        dc.DatasetID,
		Directory:        orDefault(dc.Directory, name),
		FilePrefix:       orDefault(dc.FilePrefix, name),
		DateParam:        dc.DateParam,
		LimitParam:       dc.LimitParam,
		DefaultLimit:     dc.DefaultLimit,
		FilterParam:      dc.FilterParam,
		FilterField:      dc.FilterField,
		Label:            orDefault(dc.Label, name),
		NotFoundHint:     dc.NotFoundHint,
		Schedule:         dc.Schedule,
		Auth:             auth,
	}, nil
}

func endpointTemplate(name string, protocol Protocol, dc DatasetConfig) (string, error) {
	template := dc.Endpoint
	if template == "" {
		if dc.BaseURL == "" {
			return "", errors.Errorf(MissingEndpointErrorFormat, name)
		}
		base := strings.TrimRight(dc.BaseURL, "/")
		switch {
		case protocol == PollThenDownload:
			template = base + "/" + DatasetIDPlaceholder + "/" + PollDownloadSuffix
		case dc.DatasetID == "":
			// a bare direct-get base url is already the full endpoint
			template = base
		default:
			template = base + "/" + DatasetIDPlaceholder
		}
	}
	if strings.Contains(template, DatasetIDPlaceholder) && dc.DatasetID == "" {
		return "", errors.Errorf(MissingDatasetIDErrorFormat, name, DatasetIDPlaceholder)
	}
	return template, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
