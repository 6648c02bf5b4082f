package failures

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// Reporter renders classified failures for operators. It only logs; the error is
// always handed back to the caller untouched.
type Reporter struct {
	logger zerolog.Logger
}

func NewReporter(logger zerolog.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// Report logs err against label (the dataset's operator-facing name) and
// returns err unchanged.
func (r *Reporter) Report(label string, err error) error {
	if err == nil {
		return nil
	}

	logger := r.logger.With().Str("dataset", label).Str("kind", string(KindOf(err))).Logger()
	if fe, ok := As(err); ok {
		ctx := logger.With()
		if fe.URL != "" {
			ctx = ctx.Str("url", fe.URL)
		}
		if fe.StatusCode != 0 {
			ctx = ctx.Int("status", fe.StatusCode)
		}
		if fe.Code != nil {
			ctx = ctx.Int("code", *fe.Code)
		}
		logger = ctx.Logger()
	}

	for _, line := range Describe(label, err) {
		logger.Error().Msg(line)
	}
	return err
}

// Describe produces the operator lines for err. The first line always carries
// the error code.
func Describe(label string, err error) []string {
	fe, ok := As(err)
	if !ok {
		return []string{
			fmt.Sprintf("Error code: UNKNOWN, Unexpected error: %s", err),
			fmt.Sprintf("Unexpected error in %s data acquisition", label),
		}
	}

	switch fe.Kind {
	case TransportTimeout:
		if fe.Timeout {
			return []string{
				"Error code: TIMEOUT, Connection timeout - API server not responding",
				fmt.Sprintf("Failed to fetch %s data - Connection timeout", label),
			}
		}
		return []string{
			fmt.Sprintf("Error code: TIMEOUT, Connection failed - %s", fe.Unwrap()),
			fmt.Sprintf("Failed to fetch %s data - Connection failed", label),
		}
	case HTTPStatus:
		lines := []string{
			fmt.Sprintf("Error code: %d, HTTP Error: %s", fe.StatusCode, fe.Body),
			fmt.Sprintf("Failed to fetch %s data - HTTP %d", label, fe.StatusCode),
		}
		if fe.StatusCode == http.StatusNotFound && fe.Hint != "" {
			lines = append(lines, fmt.Sprintf("Tip: %s", fe.Hint))
		}
		return lines
	case MalformedResponse:
		return []string{
			fmt.Sprintf("Error code: JSON_DECODE, Invalid JSON response: %s", fe),
			fmt.Sprintf("Failed to parse %s data - Invalid JSON response", label),
		}
	case UpstreamAPI:
		code := "none"
		if fe.Code != nil {
			code = fmt.Sprintf("%d", *fe.Code)
		}
		return []string{
			fmt.Sprintf("Error code: %s, API Error: %s", code, fe.Message),
			fmt.Sprintf("Failed to fetch %s data - upstream rejected the export request", label),
		}
	case UnknownDataset:
		return []string{
			fmt.Sprintf("Error code: UNKNOWN_DATASET, No dataset named %q is configured", fe.Dataset),
		}
	}
	return []string{fmt.Sprintf("Error code: UNKNOWN, Unexpected error: %s", err)}
}
