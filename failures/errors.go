package failures

import (
	"fmt"

	"github.com/pkg/errors"
)

type Kind string

const (
	TransportTimeout  Kind = "TIMEOUT"
	HTTPStatus        Kind = "HTTP_STATUS"
	MalformedResponse Kind = "JSON_DECODE"
	UpstreamAPI       Kind = "API_ERROR"
	UnknownDataset    Kind = "UNKNOWN_DATASET"
	Unclassified      Kind = "UNKNOWN"
)

const (
	DefaultUpstreamMessage = "Unknown API error"

	TransportErrorFormat         = "request to %s failed"
	HTTPStatusErrorFormat        = "GET %s returned with unexpected status %d"
	MalformedResponseErrorFormat = "invalid JSON response from %s"
	UpstreamAPIErrorFormat       = "API Error: %s"
	UnknownDatasetErrorFormat    = "unknown dataset %q"
)

// Error is a fetch failure classified into the staging taxonomy. Fields that do
// not apply to a kind are left zero.
type Error struct {
	Kind       Kind
	Dataset    string
	URL        string
	StatusCode int
	Body       string
	Code       *int
	Message    string
	Hint       string
	Timeout    bool

	cause error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case TransportTimeout:
		msg = fmt.Sprintf(TransportErrorFormat, e.URL)
	case HTTPStatus:
		msg = fmt.Sprintf(HTTPStatusErrorFormat, e.URL, e.StatusCode)
	case MalformedResponse:
		msg = fmt.Sprintf(MalformedResponseErrorFormat, e.URL)
		if e.Message != "" {
			msg = fmt.Sprintf("%s: %s", msg, e.Message)
		}
	case UpstreamAPI:
		msg = fmt.Sprintf(UpstreamAPIErrorFormat, e.Message)
	case UnknownDataset:
		msg = fmt.Sprintf(UnknownDatasetErrorFormat, e.Dataset)
	default:
		msg = e.Message
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", msg, e.cause.Error())
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

func NewTransportError(err error, url string, timeout bool) *Error {
	return &Error{Kind: TransportTimeout, URL: url, Timeout: timeout, cause: err}
}

func NewStatusError(url string, statusCode int, body string) *Error {
	return &Error{Kind: HTTPStatus, URL: url, StatusCode: statusCode, Body: body}
}

func NewMalformedResponseError(err error, url string) *Error {
	return &Error{Kind: MalformedResponse, URL: url, cause: err}
}

// NewMissingFieldError reports a response that parsed but lacks a field the
// protocol requires.
func NewMissingFieldError(url, field string) *Error {
	return &Error{Kind: MalformedResponse, URL: url, Message: fmt.Sprintf("response missing %s field", field)}
}

// NewUpstreamAPIError reports a poll envelope whose code was absent or non-zero.
// message is the upstream errMsg and falls back to DefaultUpstreamMessage.
func NewUpstreamAPIError(url string, code *int, message string) *Error {
	if message == "" {
		message = DefaultUpstreamMessage
	}
	return &Error{Kind: UpstreamAPI, URL: url, Code: code, Message: message}
}

func NewUnknownDatasetError(name string) *Error {
	return &Error{Kind: UnknownDataset, Dataset: name}
}

// KindOf classifies err, looking through any wrapping. Errors that did not
// originate from the taxonomy are Unclassified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unclassified
}

// As returns the classified error carried by err, if any.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
