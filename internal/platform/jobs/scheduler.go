// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of periodic work. Run reports how many items it affected.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	names  []string
}

func NewScheduler(logger zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers j. Invalid schedules are returned as errors.
func (s *Scheduler) Add(j Job) error {
	if _, err := s.cron.AddFunc(j.Schedule, func() { s.runOnce(j) }); err != nil {
		return fmt.Errorf("schedule job %s: %w", j.Name, err)
	}
	s.names = append(s.names, j.Name)
	return nil
}

// Names lists registered jobs in the order they were added.
func (s *Scheduler) Names() []string {
	return append([]string(nil), s.names...)
}

func (s *Scheduler) runOnce(j Job) {
	ctx := s.ctx
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := j.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("job", j.Name).Msg("job failed")
		return
	}
	evt := s.logger.Debug()
	if n > 0 {
		evt = s.logger.Info()
	}
	evt.Str("job", j.Name).Int("affected", n).Dur("took", time.Since(start)).Msg("job finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
