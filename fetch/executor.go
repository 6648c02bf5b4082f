package fetch

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/geolab/lake-stager/failures"
	"github.com/geolab/lake-stager/payload"
	"github.com/geolab/lake-stager/registry"
)

const (
	EndpointParsingErrorFormat = "error parsing endpoint for dataset %s: %s"
	CreateRequestErrorFormat   = "error creating request for %s"
	AuthorizeErrorFormat       = "error authorizing request for dataset %s"
	ReadResponseErrorFormat    = "error reading response from %s"

	MaxDiagnosticBodyBytes = 4096
)

type Request struct {
	Dataset    string
	TargetDate string
	Limit      int
}

type Result struct {
	Payload    payload.Payload
	Endpoint   string
	DataURL    string
	Parameters map[string]string
}

type httpClient interface {
	Do(*http.Request) (*http.Response, error)
}

type authorizer interface {
	Authorize(req *http.Request, dataset string, auth registry.AuthConfig) error
}

type Executor struct {
	client     httpClient
	authorizer authorizer
	logger     zerolog.Logger
}

func NewExecutor(client httpClient, authorizer authorizer, logger zerolog.Logger) *Executor {
	return &Executor{client: client, authorizer: authorizer, logger: logger}
}

// Execute runs the descriptor's protocol and returns the parsed upstream
// payload. Failures are *failures.Error values except for request
// construction and credential problems.
func (e *Executor) Execute(d registry.Descriptor, req Request) (Result, error) {
	switch d.Protocol {
	case registry.PollThenDownload:
		return e.pollThenDownload(d)
	default:
		return e.directGet(d, req)
	}
}

func (e *Executor) directGet(d registry.Descriptor, req Request) (Result, error) {
	endpoint := d.Endpoint()
	target, err := url.Parse(endpoint)
	if err != nil {
		return Result{}, errors.Wrapf(err, EndpointParsingErrorFormat, d.Name, endpoint)
	}

	params := queryParameters(d, req)
	query := target.Query()
	for k, v := range params {
		query.Set(k, v)
	}
	target.RawQuery = query.Encode()

	e.logger.Debug().Str("dataset", d.Name).Str("url", target.String()).Msg("requesting")
	body, err := e.get(d, target.String(), true)
	if err != nil {
		return Result{}, err
	}

	p, err := payload.Parse(body)
	if err != nil {
		return Result{}, failures.NewMalformedResponseError(err, target.String())
	}

	return Result{Payload: p, Endpoint: endpoint, Parameters: params}, nil
}

type pollEnvelope struct {
	Code   json.RawMessage `json:"code"`
	ErrMsg string          `json:"errMsg"`
	Data   struct {
		URL string `json:"url"`
	} `json:"data"`
}

func (e *Executor) pollThenDownload(d registry.Descriptor) (Result, error) {
	pollURL := d.Endpoint()

	e.logger.Debug().Str("dataset", d.Name).Str("url", pollURL).Msg("polling")
	body, err := e.get(d, pollURL, true)
	if err != nil {
		return Result{}, err
	}

	var envelope pollEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Result{}, failures.NewMalformedResponseError(err, pollURL)
	}
	if code, accepted := envelope.code(); !accepted {
		return Result{}, failures.NewUpstreamAPIError(pollURL, code, envelope.ErrMsg)
	}
	if envelope.Data.URL == "" {
		return Result{}, failures.NewMissingFieldError(pollURL, "data.url")
	}

	dataURL := envelope.Data.URL
	e.logger.Debug().Str("dataset", d.Name).Str("url", dataURL).Msg("downloading")
	body, err = e.get(d, dataURL, false)
	if err != nil {
		return Result{}, err
	}

	p, err := payload.Parse(body)
	if err != nil {
		return Result{}, failures.NewMalformedResponseError(err, dataURL)
	}

	return Result{Payload: p, Endpoint: pollURL, DataURL: dataURL}, nil
}

// code reports whether the poll was accepted, which only a numeric zero code
// means. The returned code is nil when it is missing or not a number.
func (p pollEnvelope) code() (*int, bool) {
	var n float64
	if len(p.Code) == 0 || string(p.Code) == "null" || json.Unmarshal(p.Code, &n) != nil {
		return nil, false
	}
	if n == 0 {
		return nil, true
	}
	code := int(n)
	return &code, false
}

// get issues one GET and returns the body of a 2xx response. Signed download
// links are fetched without the dataset's credentials.
func (e *Executor) get(d registry.Descriptor, target string, authorize bool) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.Wrapf(err, CreateRequestErrorFormat, target)
	}
	req.Header.Set("Accept", "application/json")

	if authorize && e.authorizer != nil {
		if err := e.authorizer.Authorize(req, d.Name, d.Auth); err != nil {
			return nil, errors.Wrapf(err, AuthorizeErrorFormat, d.Name)
		}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, failures.NewTransportError(err, target, isTimeout(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, failures.NewTransportError(err, target, true)
		}
		return nil, errors.Wrapf(err, ReadResponseErrorFormat, target)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := failures.NewStatusError(target, resp.StatusCode, diagnosticBody(body))
		statusErr.Dataset = d.Name
		if resp.StatusCode == http.StatusNotFound {
			statusErr.Hint = d.NotFoundHint
		}
		return nil, statusErr
	}
	return body, nil
}

// queryParameters picks the parameters the descriptor declares, filled from
// the request. Parameters with nothing to fill are left out.
func queryParameters(d registry.Descriptor, req Request) map[string]string {
	params := map[string]string{}
	if d.DateParam != "" && req.TargetDate != "" {
		params[d.DateParam] = req.TargetDate
	}
	if d.LimitParam != "" {
		limit := req.Limit
		if limit <= 0 {
			limit = d.DefaultLimit
		}
		if limit > 0 {
			params[d.LimitParam] = strconv.Itoa(limit)
		}
	}
	if d.FilterParam != "" && req.TargetDate != "" {
		filter, _ := json.Marshal(map[string]string{d.FilterField: req.TargetDate})
		params[d.FilterParam] = string(filter)
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func diagnosticBody(body []byte) string {
	if len(body) > MaxDiagnosticBodyBytes {
		return string(body[:MaxDiagnosticBodyBytes])
	}
	return string(body)
}
