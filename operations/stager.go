package operations

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/geolab/lake-stager/failures"
	"github.com/geolab/lake-stager/fetch"
	"github.com/geolab/lake-stager/file"
	"github.com/geolab/lake-stager/lag"
	"github.com/geolab/lake-stager/payload"
	"github.com/geolab/lake-stager/provenance"
	"github.com/geolab/lake-stager/registry"
)

type State string

const (
	Idle       State = "idle"
	Resolving  State = "resolving"
	Requesting State = "requesting"
	Counting   State = "counting"
	Composing  State = "composing"
	Writing    State = "writing"
	Done       State = "done"
	Failed     State = "failed"
)

const (
	StageFailureFormat     = "Failed staging %s while %s"
	LagResolutionFailure   = "Failed resolving lagged target date"
	ExistingLookupFailure  = "Failed checking for an existing snapshot"
	ConflictingDateMessage = "a target date and a lag cannot both be given"
)

type descriptorSource interface {
	Lookup(name string) (registry.Descriptor, error)
}

type fetcher interface {
	Execute(registry.Descriptor, fetch.Request) (fetch.Result, error)
}

type stagingWriter interface {
	Stage(registry.Descriptor, provenance.Envelope) (string, error)
}

type snapshotFinder interface {
	Latest(d registry.Descriptor, targetDate string) (file.StagedFile, bool, error)
}

type errorReporter interface {
	Report(label string, err error) error
}

// Request is one fetch invocation. LagMonths, when set, derives the target date
// from the stager's clock.
type Request struct {
	Dataset    string
	TargetDate string
	LagMonths  *int
	Limit      int
}

type Artifact struct {
	Dataset    string
	Path       string
	TargetDate string
	Envelope   provenance.Envelope
	Skipped    bool
}

type Stager struct {
	registry     descriptorSource
	executor     fetcher
	writer       stagingWriter
	snapshots    snapshotFinder
	reporter     errorReporter
	logger       zerolog.Logger
	clock        func() time.Time
	skipExisting bool
}

func NewStager(
	registry descriptorSource,
	executor fetcher,
	writer stagingWriter,
	snapshots snapshotFinder,
	reporter errorReporter,
	logger zerolog.Logger,
	clock func() time.Time,
	skipExisting bool,
) *Stager {
	if clock == nil {
		clock = time.Now
	}
	return &Stager{
		registry:     registry,
		executor:     executor,
		writer:       writer,
		snapshots:    snapshots,
		reporter:     reporter,
		logger:       logger,
		clock:        clock,
		skipExisting: skipExisting,
	}
}

type run struct {
	state  State
	label  string
	logger zerolog.Logger
}

func (r *run) enter(next State) {
	r.logger.Debug().Str("from", string(r.state)).Str("to", string(next)).Msg("transition")
	r.state = next
}

// Stage fetches one snapshot and writes it. Every failure is reported once and
// returned wrapped with the state it happened in.
func (s *Stager) Stage(req Request) (Artifact, error) {
	r := &run{
		state:  Idle,
		label:  req.Dataset,
		logger: s.logger.With().Str("dataset", req.Dataset).Logger(),
	}

	r.enter(Resolving)
	d, err := s.registry.Lookup(req.Dataset)
	if err != nil {
		return Artifact{}, s.fail(r, req.Dataset, err)
	}
	r.label = d.Label

	targetDate, err := s.targetDate(req)
	if err != nil {
		return Artifact{}, s.fail(r, d.Name, err)
	}

	if s.skipExisting && s.snapshots != nil {
		existing, found, err := s.snapshots.Latest(d, targetDate)
		if err != nil {
			return Artifact{}, s.fail(r, d.Name, errors.Wrap(err, ExistingLookupFailure))
		}
		if found {
			r.logger.Info().Str("path", existing.Path).Msg("snapshot already staged, skipping")
			r.enter(Done)
			return Artifact{Dataset: d.Name, Path: existing.Path, TargetDate: targetDate, Skipped: true}, nil
		}
	}

	r.enter(Requesting)
	result, err := s.executor.Execute(d, fetch.Request{Dataset: d.Name, TargetDate: targetDate, Limit: req.Limit})
	if err != nil {
		return Artifact{}, s.fail(r, d.Name, err)
	}

	r.enter(Counting)
	r.logger.Debug().
		Str("shape", string(payload.Detect(result.Payload))).
		Int("records", payload.Count(result.Payload)).
		Msg("inspected payload")

	r.enter(Composing)
	metadata := provenance.Build(
		provenance.Timestamp(s.clock()),
		targetDate,
		result.Endpoint,
		result.Payload,
		provenance.Extra{DataURL: result.DataURL, Parameters: result.Parameters},
	)
	envelope := provenance.NewEnvelope(metadata, result.Payload)

	r.enter(Writing)
	path, err := s.writer.Stage(d, envelope)
	if err != nil {
		return Artifact{}, s.fail(r, d.Name, err)
	}

	r.enter(Done)
	r.logger.Info().Str("path", path).Int("records", metadata.RecordCount).Msg("staged snapshot")
	return Artifact{Dataset: d.Name, Path: path, TargetDate: targetDate, Envelope: envelope}, nil
}

// StageAll runs reqs one after another. A failure does not stop the remaining
// requests; all failures are returned together.
func (s *Stager) StageAll(reqs []Request) ([]Artifact, error) {
	var (
		artifacts []Artifact
		errs      error
	)
	for _, req := range reqs {
		artifact, err := s.Stage(req)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, errs
}

func (s *Stager) targetDate(req Request) (string, error) {
	if req.LagMonths == nil {
		return req.TargetDate, nil
	}
	if req.TargetDate != "" {
		return "", errors.New(ConflictingDateMessage)
	}
	date, err := lag.Date(*req.LagMonths, s.clock())
	if err != nil {
		return "", errors.Wrap(err, LagResolutionFailure)
	}
	return date, nil
}

func (s *Stager) fail(r *run, dataset string, err error) error {
	failedIn := r.state
	r.logger.Debug().
		Str("from", string(failedIn)).
		Str("to", string(Failed)).
		Str("kind", string(failures.KindOf(err))).
		Msg("transition")
	r.state = Failed

	if s.reporter != nil {
		s.reporter.Report(r.label, err)
	}
	return errors.Wrapf(err, StageFailureFormat, dataset, failedIn)
}
