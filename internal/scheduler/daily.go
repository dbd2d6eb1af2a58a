package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/order-inventory/internal/clock"
)

// Locker grants a job run to one process. runDate identifies the run.
type Locker interface {
	Acquire(ctx context.Context, job string, runDate string) (bool, error)
}

type Option func(*Daily)

func WithLocker(l Locker) Option { return func(d *Daily) { d.locker = l } }

func WithClock(c clock.Clock) Option { return func(d *Daily) { d.clock = c } }

func WithLogger(l *log.Logger) Option { return func(d *Daily) { d.logger = l } }

// Daily runs job once a day at a wall-clock time in a fixed location.
type Daily struct {
	name   string
	hour   int
	minute int
	loc    *time.Location
	job    func(ctx context.Context) error

	locker Locker
	clock  clock.Clock
	logger *log.Logger
}

// ParseAt parses "HH:MM" (24h).
func ParseAt(at string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: want HH:MM", at)
	}
	return t.Hour(), t.Minute(), nil
}

func NewDaily(name, at string, loc *time.Location, job func(ctx context.Context) error, opts ...Option) (*Daily, error) {
	hour, minute, err := ParseAt(at)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	d := &Daily{
		name:   name,
		hour:   hour,
		minute: minute,
		loc:    loc,
		job:    job,
		clock:  clock.NewSystem(),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Next returns the first run strictly after t.
func (d *Daily) Next(t time.Time) time.Time {
	local := t.In(d.loc)
	run := time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !run.After(local) {
		run = time.Date(local.Year(), local.Month(), local.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return run
}

// Run blocks until ctx is done, firing the job at every scheduled time.
func (d *Daily) Run(ctx context.Context) error {
	for {
		now := d.clock.Now()
		next := d.Next(now)
		d.logger.Printf("scheduler: %s next run at %s", d.name, next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			d.fire(ctx, next)
		}
	}
}

func (d *Daily) fire(ctx context.Context, at time.Time) {
	runDate := at.In(d.loc).Format("2006-01-02")
	if d.locker != nil {
		ok, err := d.locker.Acquire(ctx, d.name, runDate)
		switch {
		case err != nil:
			d.logger.Printf("scheduler: %s lock for %s unavailable, running anyway: %v", d.name, runDate, err)
		case !ok:
			d.logger.Printf("scheduler: %s for %s already taken by another instance", d.name, runDate)
			return
		}
	}

	start := time.Now()
	if err := d.job(ctx); err != nil {
		d.logger.Printf("scheduler: %s for %s failed: %v", d.name, runDate, err)
		return
	}
	d.logger.Printf("scheduler: %s for %s done in %s", d.name, runDate, time.Since(start).Round(time.Millisecond))
}
