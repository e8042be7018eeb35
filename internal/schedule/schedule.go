// Package schedule runs BMO's periodic behaviour (blinking, mood changes
// and the night-time sleep window) on cron specs.
package schedule

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"bmo/internal/bmo"
	"bmo/internal/config"
	"bmo/internal/face"
	"bmo/internal/log"
)

// Device is the part of bmo.Device the jobs drive.
type Device interface {
	Blink() error
	NextMood() (face.Expression, error)
	Sleep() error
	Wakeup() error
}

var _ Device = (*bmo.Device)(nil)

// Scheduler wraps a cron runner with BMO's jobs registered.
type Scheduler struct {
	c    *cron.Cron
	jobs []string
}

// New registers a job for every non-empty spec. Jobs never overlap with
// themselves, and panics are recovered and logged.
func New(cfg config.ScheduleConfig, dev Device) (*Scheduler, error) {
	l := cronLogger{}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	s := &Scheduler{c: c}

	jobs := []struct {
		name string
		spec string
		run  func() error
	}{
		{"blink", cfg.Blink, dev.Blink},
		{"mood", cfg.Mood, func() error {
			e, err := dev.NextMood()
			if err == nil {
				log.Info("schedule: mood changed", "expression", e.String())
			}
			return err
		}},
		{"sleep", cfg.Sleep, dev.Sleep},
		{"wake", cfg.Wake, dev.Wakeup},
	}
	for _, j := range jobs {
		if j.spec == "" {
			log.Debug("schedule: job disabled", "job", j.name)
			continue
		}
		if _, err := c.AddFunc(j.spec, wrap(j.name, j.run)); err != nil {
			return nil, fmt.Errorf("schedule: %s spec %q: %w", j.name, j.spec, err)
		}
		s.jobs = append(s.jobs, j.name)
		log.Info("schedule: job registered", "job", j.name, "spec", j.spec)
	}
	return s, nil
}

// wrap logs job failures. A sleeping or absent display is expected and only
// logged at debug level.
func wrap(name string, run func() error) func() {
	return func() {
		err := run()
		switch {
		case err == nil:
		case errors.Is(err, bmo.ErrAsleep), errors.Is(err, bmo.ErrNotReady):
			log.Debug("schedule: job skipped", "job", name, "reason", err.Error())
		default:
			log.Error("schedule: job failed", err, "job", name)
		}
	}
}

// Jobs lists the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	return append([]string(nil), s.jobs...)
}

func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// cronLogger routes cron's own logging through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	log.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	log.Error("cron: "+msg, err, kv...)
}
