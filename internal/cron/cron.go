// Package cron implements the Cron Scheduler (§4.10): recurring prompts
// expressed as cron expressions, driving the Session Manager at each tick
// and handing delivery of the result off to a channel adapter. Cron
// matching uses github.com/adhocore/gronx, the dependency the teacher's
// go.mod already carries for this; the scheduler loop itself follows
// cmd/gateway_cron.go's block-on-sendMessage-then-record-result shape,
// generalized from a one-shot handler to a recurring tick loop.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/nextlevelbuilder/clade/internal/gatewayboundary"
	"github.com/nextlevelbuilder/clade/internal/sessionmgr"
	"github.com/nextlevelbuilder/clade/internal/store"
	"github.com/nextlevelbuilder/clade/internal/supervisor"
)

// DefaultTickInterval is how often the scheduler checks for due jobs.
// Cron expressions are minute-grained, so this must be well under 60s.
const DefaultTickInterval = 20 * time.Second

// Sender is the narrow Session Manager surface the scheduler re-enters at
// each fire.
type Sender interface {
	SendMessage(ctx context.Context, agentID, prompt, channel, userID, chatID string) (sessionmgr.SendResult, error)
}

// Scheduler is the Cron Scheduler: a live cache of enabled jobs matched
// against the clock every tick, mutated in lockstep with the Store by
// AddJob/RemoveJob/EnableJob/DisableJob.
type Scheduler struct {
	stores       *store.Stores
	sender       Sender
	deliverers   *gatewayboundary.Registry
	sup          *supervisor.Supervisor
	tickInterval time.Duration

	mu         sync.Mutex
	jobs       map[string]store.CronJob
	lastFired  map[string]time.Time // job id -> minute truncation of its last fire
}

// New constructs a Scheduler. tickInterval <= 0 falls back to
// DefaultTickInterval.
func New(stores *store.Stores, sender Sender, deliverers *gatewayboundary.Registry, sup *supervisor.Supervisor, tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	return &Scheduler{
		stores:       stores,
		sender:       sender,
		deliverers:   deliverers,
		sup:          sup,
		tickInterval: tickInterval,
		jobs:         make(map[string]store.CronJob),
		lastFired:    make(map[string]time.Time),
	}
}

// Start loads every cron row from the Store into the live cache and
// launches the tick loop under the supervisor. Per §8 property 3, a job
// with enabled=true is active immediately after Start returns.
func (s *Scheduler) Start(ctx context.Context) error {
	rows, err := s.stores.Cron.ListCronJobs(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, j := range rows {
		s.jobs[j.ID] = j
	}
	s.mu.Unlock()

	s.sup.Go("cron.loop", func() error {
		s.loop(ctx)
		return nil
	})
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	minute := now.Truncate(time.Minute)

	s.mu.Lock()
	var due []store.CronJob
	for id, j := range s.jobs {
		if !j.Enabled {
			continue
		}
		if s.lastFired[id].Equal(minute) {
			continue
		}
		isDue, err := gronx.IsDue(j.Schedule, now)
		if err != nil {
			slog.Error("cron.bad_schedule", "job", j.Name, "schedule", j.Schedule, "error", err)
			continue
		}
		if !isDue {
			continue
		}
		s.lastFired[id] = minute
		due = append(due, j)
	}
	s.mu.Unlock()

	for _, j := range due {
		j := j
		s.sup.Go("cron.fire."+j.Name, func() error {
			s.fire(ctx, j)
			return nil
		})
	}
}

func (s *Scheduler) fire(ctx context.Context, j store.CronJob) {
	slog.Info("cron.fire", "job", j.Name, "agent", j.AgentID)
	res, err := s.sender.SendMessage(ctx, j.AgentID, j.Prompt, "cron", "cron", "")
	if err != nil {
		slog.Error("cron.fire_failed", "job", j.Name, "error", err)
		return
	}

	if err := s.stores.Cron.TouchCronLastRun(ctx, j.ID, time.Now()); err != nil {
		slog.Error("cron.touch_failed", "job", j.Name, "error", err)
	}

	if j.DeliverTo == "" {
		return
	}
	channel, target, ok := gatewayboundary.ParseDeliverTo(j.DeliverTo)
	if !ok {
		slog.Error("cron.bad_deliver_to", "job", j.Name, "deliverTo", j.DeliverTo)
		return
	}
	if err := s.deliverers.Deliver(ctx, channel, target, res.Text); err != nil {
		// §4.10: delivery failures are logged but never fail the job.
		slog.Error("cron.delivery_failed", "job", j.Name, "channel", channel, "error", err)
	}
}

// AddJob persists j and activates it immediately if enabled.
func (s *Scheduler) AddJob(ctx context.Context, j store.CronJob) (store.CronJob, error) {
	created, err := s.stores.Cron.CreateCronJob(ctx, j)
	if err != nil {
		return store.CronJob{}, err
	}
	s.mu.Lock()
	s.jobs[created.ID] = created
	s.mu.Unlock()
	return created, nil
}

// RemoveJob deletes j from the Store and the live cache.
func (s *Scheduler) RemoveJob(ctx context.Context, id string) error {
	if err := s.stores.Cron.DeleteCronJob(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.jobs, id)
	delete(s.lastFired, id)
	s.mu.Unlock()
	return nil
}

// EnableJob re-activates a disabled job without touching its schedule.
func (s *Scheduler) EnableJob(ctx context.Context, id string) error {
	if err := s.stores.Cron.EnableCronJob(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	if j, ok := s.jobs[id]; ok {
		j.Enabled = true
		s.jobs[id] = j
	}
	s.mu.Unlock()
	return nil
}

// DisableJob deactivates a job without deleting it (§8 property 3: "without
// data loss").
func (s *Scheduler) DisableJob(ctx context.Context, id string) error {
	if err := s.stores.Cron.DisableCronJob(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	if j, ok := s.jobs[id]; ok {
		j.Enabled = false
		s.jobs[id] = j
	}
	s.mu.Unlock()
	return nil
}

// ListJobs returns a snapshot of the live cache.
func (s *Scheduler) ListJobs() []store.CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.CronJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out
}

// IsJobActive reports whether a job named name is enabled in the live
// cache, per §8 property 3.
func (s *Scheduler) IsJobActive(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Name == name {
			return j.Enabled
		}
	}
	return false
}
