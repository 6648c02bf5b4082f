package operations

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/geolab/lake-stager/file"
	"github.com/geolab/lake-stager/lag"
	"github.com/geolab/lake-stager/provenance"
	"github.com/geolab/lake-stager/registry"
)

const (
	NoLaggedSnapshotsFormat = "No staged snapshots of %s for lag date %s"
	SummaryFailureFormat    = "Failed summarizing %s"
)

type snapshotLoader interface {
	List(d registry.Descriptor) ([]file.StagedFile, error)
	Load(path string) (provenance.Envelope, error)
}

type laggedWriter interface {
	WriteLagged(d registry.Descriptor, lagMonths int, timestamp string, summary interface{}) (string, error)
}

// LagSummary gathers every snapshot staged for a lagged date into one file.
type LagSummary struct {
	LagMonths          int           `json:"lag_months"`
	TargetDate         string        `json:"target_date"`
	ProcessedTimestamp string        `json:"processed_timestamp"`
	RecordCount        int           `json:"record_count"`
	Sources            []string      `json:"sources"`
	Data               []interface{} `json:"data"`
}

type Summarizer struct {
	registry  descriptorSource
	snapshots snapshotLoader
	writer    laggedWriter
	logger    zerolog.Logger
	clock     func() time.Time
}

func NewSummarizer(registry descriptorSource, snapshots snapshotLoader, writer laggedWriter, logger zerolog.Logger, clock func() time.Time) *Summarizer {
	if clock == nil {
		clock = time.Now
	}
	return &Summarizer{registry: registry, snapshots: snapshots, writer: writer, logger: logger, clock: clock}
}

// Summarize loads the snapshots of dataset staged for the date lagMonths back
// and writes their data as one summary. A snapshot whose data is a JSON array
// contributes its elements, anything else contributes the whole value.
func (s *Summarizer) Summarize(dataset string, lagMonths int) (LagSummary, string, error) {
	d, err := s.registry.Lookup(dataset)
	if err != nil {
		return LagSummary{}, "", err
	}

	now := s.clock()
	targetDate, err := lag.Date(lagMonths, now)
	if err != nil {
		return LagSummary{}, "", errors.Wrap(err, LagResolutionFailure)
	}

	staged, err := s.snapshots.List(d)
	if err != nil {
		return LagSummary{}, "", errors.Wrapf(err, SummaryFailureFormat, d.Name)
	}

	summary := LagSummary{
		LagMonths:          lagMonths,
		TargetDate:         targetDate,
		ProcessedTimestamp: provenance.Timestamp(now),
		Data:               []interface{}{},
	}
	suffix := file.DateSuffix(targetDate)
	for _, sf := range staged {
		if sf.DateSuffix != suffix {
			continue
		}
		env, err := s.snapshots.Load(sf.Path)
		if err != nil {
			return LagSummary{}, "", errors.Wrapf(err, SummaryFailureFormat, d.Name)
		}
		if records, ok := env.Data.Value().([]interface{}); ok {
			summary.Data = append(summary.Data, records...)
		} else {
			summary.Data = append(summary.Data, env.Data.Value())
		}
		summary.Sources = append(summary.Sources, sf.Name)
		s.logger.Debug().Str("dataset", d.Name).Str("file", sf.Name).Msg("loaded lagged snapshot")
	}
	if len(summary.Sources) == 0 {
		return LagSummary{}, "", errors.Errorf(NoLaggedSnapshotsFormat, d.Name, targetDate)
	}
	summary.RecordCount = len(summary.Data)

	path, err := s.writer.WriteLagged(d, lagMonths, summary.ProcessedTimestamp, summary)
	if err != nil {
		return LagSummary{}, "", errors.Wrapf(err, SummaryFailureFormat, d.Name)
	}
	return summary, path, nil
}
