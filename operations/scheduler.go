package operations

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/geolab/lake-stager/registry"
)

const (
	NoScheduleErrorFormat      = "dataset %s has no schedule"
	InvalidScheduleErrorFormat = "dataset %s: invalid schedule %q"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type stager interface {
	Stage(Request) (Artifact, error)
}

// Scheduler repeats fetches on each dataset's cron schedule. A failed run is
// reported by the stager and waits for the next tick; nothing is retried.
type Scheduler struct {
	cron   *cron.Cron
	stager stager
	logger zerolog.Logger
}

func NewScheduler(st stager, logger zerolog.Logger) *Scheduler {
	cl := cronLogger{log: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(scheduleParser),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		stager: st,
		logger: logger,
	}
}

func (s *Scheduler) Add(d registry.Descriptor, lagMonths *int) error {
	if d.Schedule == "" {
		return errors.Errorf(NoScheduleErrorFormat, d.Name)
	}

	_, err := s.cron.AddFunc(d.Schedule, func() {
		artifact, err := s.stager.Stage(Request{Dataset: d.Name, LagMonths: lagMonths})
		if err != nil {
			s.logger.Debug().Str("dataset", d.Name).Msg("scheduled fetch failed")
			return
		}
		s.logger.Info().Str("dataset", d.Name).Str("path", artifact.Path).Bool("skipped", artifact.Skipped).Msg("scheduled fetch finished")
	})
	if err != nil {
		return errors.Wrapf(err, InvalidScheduleErrorFormat, d.Name, d.Schedule)
	}
	return nil
}

func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs. The returned context is done once running fetches
// have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

var _ cron.Logger = cronLogger{}
