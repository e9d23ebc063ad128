// Package scheduler drives alarm delivery on a cron schedule: each tick
// refreshes calendar sources, asks the collection for due alarms and
// hands them to a dispatcher.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "remhind/internal/log"
	"remhind/internal/model"
	"remhind/internal/notify"
)

// Source is the part of events.Collection the scheduler needs.
type Source interface {
	GetDueAlarms(now time.Time) []model.Alarm
}

// RefreshFunc reloads calendar data before due alarms are computed.
type RefreshFunc func(ctx context.Context) error

// Scheduler runs Tick on a cron schedule.
type Scheduler struct {
	source     Source
	dispatcher notify.Dispatcher
	refresh    RefreshFunc
	now        func() time.Time

	tickMu sync.Mutex

	mu   sync.Mutex
	cron *cron.Cron
}

// Options configure a Scheduler.
type Options struct {
	Refresh  RefreshFunc
	Location *time.Location
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func New(src Source, d notify.Dispatcher, opts Options) *Scheduler {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	if opts.Location != nil {
		clock := now
		loc := opts.Location
		now = func() time.Time { return clock().In(loc) }
	}
	return &Scheduler{source: src, dispatcher: d, refresh: opts.Refresh, now: now}
}

// Tick runs one delivery pass at now and returns the number of alarms
// dispatched. Refresh and dispatch errors are logged; the pass goes on
// so one broken calendar or notifier does not silence the rest.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (int, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	var errs []error
	if s.refresh != nil {
		if err := s.refresh(ctx); err != nil {
			appLog.Error("refresh failed", err)
			errs = append(errs, err)
		}
	}

	sent := 0
	for _, a := range s.source.GetDueAlarms(now) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.dispatcher.Dispatch(ctx, a); err != nil {
			appLog.Error("dispatch failed", err, "uid", a.Event)
			errs = append(errs, err)
			continue
		}
		sent++
	}
	appLog.Debug("tick", "now", now.Format(time.RFC3339), "sent", sent)
	return sent, errors.Join(errs...)
}

// Start schedules Tick with the given cron spec (standard five fields or
// a descriptor such as "@every 1m"). It runs one tick immediately. The
// scheduler stops when ctx is canceled.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	c := cron.New()
	c.Schedule(sched, cron.FuncJob(func() {
		s.Tick(ctx, s.now())
	}))
	s.cron = c
	c.Start()

	go s.Tick(ctx, s.now())
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	appLog.Info("scheduler started", "poll", spec)
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	appLog.Info("scheduler stopped")
}
