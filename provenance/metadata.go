package provenance

import (
	"time"

	"github.com/geolab/lake-stager/payload"
)

const TimestampLayout = "20060102T150405Z"

type Metadata struct {
	FetchTimestamp string            `json:"fetch_timestamp"`
	TargetDate     *string           `json:"target_date"`
	APIEndpoint    string            `json:"api_endpoint"`
	DataURL        string            `json:"data_url,omitempty"`
	RecordCount    int               `json:"record_count"`
	Parameters     map[string]string `json:"parameters,omitempty"`
}

// Extra carries the fields that only some fetches have: the signed download
// link of a two-phase fetch and the query parameters of a direct one.
type Extra struct {
	DataURL    string
	Parameters map[string]string
}

type Envelope struct {
	Metadata Metadata        `json:"metadata"`
	Data     payload.Payload `json:"data"`
}

// Timestamp renders t in UTC at one-second resolution.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

func Build(timestamp, targetDate, endpoint string, p payload.Payload, extra Extra) Metadata {
	m := Metadata{
		FetchTimestamp: timestamp,
		APIEndpoint:    endpoint,
		DataURL:        extra.DataURL,
		RecordCount:    payload.Count(p),
	}
	if targetDate != "" {
		td := targetDate
		m.TargetDate = &td
	}
	if len(extra.Parameters) > 0 {
		m.Parameters = make(map[string]string, len(extra.Parameters))
		for k, v := range extra.Parameters {
			m.Parameters[k] = v
		}
	}
	return m
}

func NewEnvelope(m Metadata, p payload.Payload) Envelope {
	return Envelope{Metadata: m, Data: p}
}

func (m Metadata) Target() string {
	if m.TargetDate == nil {
		return ""
	}
	return *m.TargetDate
}
